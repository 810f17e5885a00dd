package logbook

import (
	"slices"
	"sync"
)

// OrderedLog is an append-only sequence of entries in retrieval order with no
// two entries sharing a key. It is safe for concurrent use.
type OrderedLog struct {
	mu      sync.RWMutex
	entries []*Entry
	seen    map[Key]struct{}
	flights FlightIndexSet
}

// NewOrderedLog creates an empty log.
func NewOrderedLog() *OrderedLog {
	return &OrderedLog{seen: make(map[Key]struct{})}
}

// Append adds an entry. It reports false, leaving the log unchanged, when an
// entry with the same key is already present.
func (l *OrderedLog) Append(e *Entry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := e.Key()
	if _, dup := l.seen[k]; dup {
		return false
	}
	l.seen[k] = struct{}{}
	l.entries = append(l.entries, e)
	l.flights = l.flights.with(e.Flight)
	return true
}

// Contains reports whether an entry with key k has been appended.
func (l *OrderedLog) Contains(k Key) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[k]
	return ok
}

// Reset removes every entry.
func (l *OrderedLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.seen = make(map[Key]struct{})
	l.flights = nil
}

// Len returns the number of entries.
func (l *OrderedLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a snapshot of the entries in retrieval order. The slice is
// owned by the caller; the entries are shared.
func (l *OrderedLog) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Flight returns the entries of a single flight in retrieval order.
func (l *OrderedLog) Flight(flight uint16) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Entry
	for _, e := range l.entries {
		if e.Flight == flight {
			out = append(out, e)
		}
	}
	return out
}

// Flights returns the distinct flight indices present in the log.
func (l *OrderedLog) Flights() FlightIndexSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.flights)
}

// FlightIndexSet is a sorted set of distinct flight indices.
type FlightIndexSet []uint16

// Contains reports whether flight is in the set.
func (s FlightIndexSet) Contains(flight uint16) bool {
	_, ok := slices.BinarySearch(s, flight)
	return ok
}

func (s FlightIndexSet) with(flight uint16) FlightIndexSet {
	i, ok := slices.BinarySearch(s, flight)
	if ok {
		return s
	}
	return slices.Insert(s, i, flight)
}
