// Package events fans manager state changes out to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what changed.
type Kind int

const (
	RetrievalProgress Kind = iota
	RetrievalFinished
	ExportProgress
	ExportFinished
	SettingsLoaded
	SettingsCommitted
	LogsCleared
	StateChanged
)

var kindNames = [...]string{
	"retrieval-progress",
	"retrieval-finished",
	"export-progress",
	"export-finished",
	"settings-loaded",
	"settings-committed",
	"logs-cleared",
	"state-changed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Event is one state change. Payload holds the kind-specific value:
// retrieval.Progress, retrieval.Result, export.Result, and so on.
type Event struct {
	Kind    Kind
	Time    time.Time
	Payload any
	Err     error
}

// Subscriber receives events of the kinds it asked for.
type Subscriber struct {
	ID     string
	Kinds  []Kind
	Events chan Event
}

func (s *Subscriber) wants(k Kind) bool {
	if len(s.Kinds) == 0 {
		return true
	}
	for _, want := range s.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Broadcaster distributes events without ever blocking the publisher. A
// subscriber whose buffer is full misses progress events; terminal kinds
// wait up to TerminalWait for room.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
	buffer      int
}

const (
	// DefaultBuffer is the per-subscriber channel size.
	DefaultBuffer = 128

	// TerminalWait bounds how long Publish waits on a full subscriber for
	// a terminal event.
	TerminalWait = time.Second
)

// New creates a Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
		buffer:      DefaultBuffer,
	}
}

// Subscribe registers a subscriber for kinds, or all kinds if none given.
// It returns nil after Close.
func (b *Broadcaster) Subscribe(kinds ...Kind) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Kinds:  kinds,
		Events: make(chan Event, b.buffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish sends ev to every interested subscriber.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !sub.wants(ev.Kind) {
			continue
		}
		if terminal(ev.Kind) {
			select {
			case sub.Events <- ev:
			case <-time.After(TerminalWait):
			}
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			// full, progress events are dropped
		}
	}
}

func terminal(k Kind) bool {
	switch k {
	case RetrievalFinished, ExportFinished, SettingsCommitted, LogsCleared:
		return true
	}
	return false
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
