// Package logbook holds retrieved flight log entries in device retrieval
// order together with the set of flights they belong to.
package logbook

import (
	"fmt"

	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// Kind identifies what a log record carries.
type Kind uint8

// Record kinds as stored on the device.
const (
	// KindEmpty marks the end of a flight. It is never stored in a log.
	KindEmpty Kind = 0

	// KindText is a free-form text message.
	KindText Kind = 1

	// KindObject is a snapshot of one object instance.
	KindObject Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindText:
		return "text"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Key identifies an entry within the device log store.
type Key struct {
	Flight uint16
	Index  uint16
}

// String formats the key as flight:index.
func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Flight, k.Index)
}

// Entry is one decoded log record. Entries are immutable once built; the log
// and its readers share them by pointer.
type Entry struct {
	// Flight is the flight (power cycle) the entry was recorded in.
	Flight uint16

	// Index is the position of the entry within its flight.
	Index uint16

	// OffsetMs is the device clock in milliseconds since the flight started.
	OffsetMs uint32

	// TypeID is the object type id; zero for text entries.
	TypeID uint32

	// InstanceID is the object instance.
	InstanceID uint16

	// Kind is the record kind.
	Kind Kind

	// Payload is the object payload or the text message bytes.
	Payload []byte

	// Schema resolves the payload layout. Nil for text entries.
	Schema *uavo.ObjectType

	// Raw is the complete record as received from the device.
	Raw []byte
}

// Key returns the entry's (flight, index) key.
func (e *Entry) Key() Key {
	return Key{Flight: e.Flight, Index: e.Index}
}

// Name returns the object name, or "Text" for text entries.
func (e *Entry) Name() string {
	if e.Schema != nil {
		return e.Schema.Name
	}
	if e.Kind == KindText {
		return "Text"
	}
	return fmt.Sprintf("0x%08X", e.TypeID)
}

// CorrectedTime returns the entry timestamp biased by baseTimeMs.
func (e *Entry) CorrectedTime(baseTimeMs int64) int64 {
	return int64(e.OffsetMs) + baseTimeMs
}
