// Package codec converts raw device log records to entries and writes
// entries out as text, CSV, XML or OPL.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// HeaderSize is the fixed size of a raw record header.
const HeaderSize = 16

// Record errors.
var (
	// ErrMalformedRecord is returned for records that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrEndOfFlight is returned for the empty record the device sends past
	// the last entry of a flight.
	ErrEndOfFlight = errors.New("end of flight")
)

// Decode parses a raw record. The returned entry owns a copy of raw.
func Decode(raw []byte, cat *uavo.Catalogue) (*logbook.Entry, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrMalformedRecord, len(raw))
	}

	raw = bytes.Clone(raw)
	e := &logbook.Entry{
		Flight:     binary.LittleEndian.Uint16(raw[0:]),
		Index:      binary.LittleEndian.Uint16(raw[2:]),
		OffsetMs:   binary.LittleEndian.Uint32(raw[4:]),
		TypeID:     binary.LittleEndian.Uint32(raw[8:]),
		InstanceID: binary.LittleEndian.Uint16(raw[12:]),
		Kind:       logbook.Kind(raw[14]),
		Payload:    raw[HeaderSize:],
		Raw:        raw,
	}

	switch e.Kind {
	case logbook.KindEmpty:
		return nil, ErrEndOfFlight
	case logbook.KindText:
		return e, nil
	case logbook.KindObject:
		schema, ok := cat.Lookup(e.TypeID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown object 0x%08X at %s", ErrMalformedRecord, e.TypeID, e.Key())
		}
		if len(e.Payload) < schema.Size() {
			return nil, fmt.Errorf("%w: %s payload is %d bytes, want %d", ErrMalformedRecord, schema.Name, len(e.Payload), schema.Size())
		}
		e.Schema = schema
		return e, nil
	default:
		return nil, fmt.Errorf("%w: kind %d at %s", ErrMalformedRecord, e.Kind, e.Key())
	}
}

// Encode builds the raw record for an entry from its fields and payload.
func Encode(e *logbook.Entry) []byte {
	raw := make([]byte, HeaderSize+len(e.Payload))
	binary.LittleEndian.PutUint16(raw[0:], e.Flight)
	binary.LittleEndian.PutUint16(raw[2:], e.Index)
	binary.LittleEndian.PutUint32(raw[4:], e.OffsetMs)
	binary.LittleEndian.PutUint32(raw[8:], e.TypeID)
	binary.LittleEndian.PutUint16(raw[12:], e.InstanceID)
	raw[14] = byte(e.Kind)
	copy(raw[HeaderSize:], e.Payload)
	return raw
}

// EndOfFlight returns the empty record marking the end of a flight.
func EndOfFlight(flight, index uint16) []byte {
	return Encode(&logbook.Entry{Flight: flight, Index: index, Kind: logbook.KindEmpty})
}

// Fields decodes the payload of an object entry. Text entries have none. A
// payload that does not fit its schema is an ErrMalformedRecord.
func Fields(e *logbook.Entry) ([]uavo.FieldValue, error) {
	if e.Schema == nil {
		return nil, nil
	}
	values, err := e.Schema.Unpack(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %w", ErrMalformedRecord, e.Key(), err)
	}
	return values, nil
}

// PeekKey reads the flight and entry index of a raw record without decoding
// the rest.
func PeekKey(raw []byte) (logbook.Key, error) {
	if len(raw) < HeaderSize {
		return logbook.Key{}, fmt.Errorf("%w: %d byte header", ErrMalformedRecord, len(raw))
	}
	return logbook.Key{
		Flight: binary.LittleEndian.Uint16(raw[0:]),
		Index:  binary.LittleEndian.Uint16(raw[2:]),
	}, nil
}

// Rekey returns a copy of raw renumbered to flight and index.
func Rekey(raw []byte, flight, index uint16) ([]byte, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrMalformedRecord, len(raw))
	}
	out := bytes.Clone(raw)
	binary.LittleEndian.PutUint16(out[0:], flight)
	binary.LittleEndian.PutUint16(out[2:], index)
	return out, nil
}
