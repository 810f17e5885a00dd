package logging

import "sync"

// DefaultRingSize is the number of records kept in interactive mode.
const DefaultRingSize = 50

// Ring keeps the most recent records. The retrieval view tails it to show
// retries and skipped records under the progress bar.
type Ring struct {
	mu   sync.RWMutex
	buf  []Record
	next int
	full bool
}

// NewRing creates a ring holding up to size records.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Record, size)}
}

// Push adds a record, overwriting the oldest once full.
func (r *Ring) Push(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of records held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Tail returns up to n of the newest records, oldest first.
func (r *Ring) Tail(n int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	held := r.next
	if r.full {
		held = len(r.buf)
	}
	if n > held || n < 0 {
		n = held
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		idx := (r.next - n + i + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}
