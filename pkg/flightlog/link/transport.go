// Package link is the request/response channel to a flight controller. A
// Transport issues object reads and writes without blocking and delivers
// their outcome later as Responses on a single events channel.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// Link errors.
var (
	// ErrTimeout means the device did not answer within the request budget.
	ErrTimeout = errors.New("request timed out")

	// ErrNotFound means the device has no such object or instance.
	ErrNotFound = errors.New("object not found")

	// ErrRejected means the device answered with an error.
	ErrRejected = errors.New("request rejected by device")

	// ErrClosed is returned once the transport has been closed.
	ErrClosed = errors.New("link closed")
)

// RequestID identifies one issued request. IDs are never reused by a
// transport.
type RequestID uint64

// Status is the outcome of a request.
type Status uint8

// Request outcomes.
const (
	StatusOK Status = iota
	StatusNotFound
	StatusError
	StatusTimeout
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Response is the answer to one request. Payload is set for successful reads.
type Response struct {
	ID         RequestID
	Status     Status
	TypeID     uint32
	InstanceID uint16
	Payload    []byte
}

// Err converts a non-OK status to the matching link error.
func (r Response) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return fmt.Errorf("object 0x%08X/%d: %w", r.TypeID, r.InstanceID, ErrNotFound)
	case StatusTimeout:
		return fmt.Errorf("object 0x%08X/%d: %w", r.TypeID, r.InstanceID, ErrTimeout)
	default:
		return fmt.Errorf("object 0x%08X/%d: %w", r.TypeID, r.InstanceID, ErrRejected)
	}
}

// Transport is a non-blocking request/response channel. Requests are handled
// in the order they were issued. Events has a single consumer at a time.
type Transport interface {
	// RequestObject asks for the current value of an object instance.
	RequestObject(typeID uint32, instanceID uint16) RequestID

	// WriteObject sends a new value for an object instance. The response
	// acknowledges the write.
	WriteObject(typeID uint32, instanceID uint16, data []byte) RequestID

	// Events delivers responses. It is closed when the transport closes.
	Events() <-chan Response

	// Close stops the transport.
	Close() error
}

// Device is the synchronous side of a link: something that can read and
// write objects directly. Implementations return ErrNotFound for unknown
// objects.
type Device interface {
	ReadObject(ctx context.Context, typeID uint32, instanceID uint16) ([]byte, error)
	WriteObject(ctx context.Context, typeID uint32, instanceID uint16, data []byte) error
}

// idSource hands out increasing request ids starting at 1.
type idSource struct {
	last atomic.Uint64
}

func (s *idSource) next() RequestID {
	return RequestID(s.last.Add(1))
}
