// Package device simulates the object interface of a flight controller on
// top of a log store: the debug-log objects, per-object logging metadata and
// plain object values.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// Capacity is the number of log slots the simulated flash holds.
const Capacity = 1 << 15

// Device is a simulated flight controller. It implements link.Device and is
// safe for concurrent use.
type Device struct {
	cat   *uavo.Catalogue
	store *store.Store
	log   *logging.Logger

	mu       sync.Mutex
	selected link.LogControl
	faults   map[uint32]error
	reads    int
	writes   int
}

var _ link.Device = (*Device)(nil)

// New creates a device over s.
func New(cat *uavo.Catalogue, s *store.Store) *Device {
	return &Device{
		cat:    cat,
		store:  s,
		log:    logging.Get("device"),
		faults: make(map[uint32]error),
	}
}

// Store returns the backing log store.
func (d *Device) Store() *store.Store { return d.store }

// InjectFault makes every access to typeID fail with err. A nil err clears
// the fault.
func (d *Device) InjectFault(typeID uint32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, typeID)
		return
	}
	d.faults[typeID] = err
}

// Counters returns the number of reads and writes served.
func (d *Device) Counters() (reads, writes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads, d.writes
}

// Status returns the current debug-log status.
func (d *Device) Status() link.LogStatus {
	used := d.store.CountEntries()
	st := link.LogStatus{
		UsedSlots: uint16(min(used, Capacity)),
		FreeSlots: uint16(max(Capacity-used, 0)),
	}
	if last, ok := d.store.LastFlight(); ok {
		st.Flight = last
		st.Entry = uint16(d.store.FlightLen(last))
	}
	return st
}

// ReadObject implements link.Device.
func (d *Device) ReadObject(ctx context.Context, typeID uint32, instance uint16) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.reads++
	fault := d.faults[typeID]
	selected := d.selected
	d.mu.Unlock()
	if fault != nil {
		return nil, fault
	}

	switch typeID {
	case uavo.DebugLogStatusID:
		return d.Status().MarshalBinary()
	case uavo.DebugLogControlID:
		return selected.MarshalBinary()
	case uavo.DebugLogEntryID:
		return d.readEntry(selected)
	}

	if owner, ok := d.cat.MetaOwner(typeID); ok {
		data, err := d.store.Object(typeID, instance)
		if errors.Is(err, store.ErrNotFound) {
			d.log.Debug("metadata not set, using default", "object", owner.Name)
			return settings.Disabled.Metadata().MarshalBinary()
		}
		return data, err
	}

	t, ok := d.cat.Lookup(typeID)
	if !ok {
		return nil, fmt.Errorf("object 0x%08X: %w", typeID, link.ErrNotFound)
	}
	data, err := d.store.Object(typeID, instance)
	if errors.Is(err, store.ErrNotFound) {
		return make([]byte, t.Size()), nil
	}
	return data, err
}

func (d *Device) readEntry(sel link.LogControl) ([]byte, error) {
	if sel.Operation != uavo.OperationRetrieve {
		return nil, fmt.Errorf("no log entry selected: %w", link.ErrRejected)
	}
	raw, err := d.store.Record(sel.Flight, sel.Entry)
	if errors.Is(err, store.ErrNotFound) {
		return codec.EndOfFlight(sel.Flight, sel.Entry), nil
	}
	return raw, err
}

// WriteObject implements link.Device.
func (d *Device) WriteObject(ctx context.Context, typeID uint32, instance uint16, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.writes++
	fault := d.faults[typeID]
	d.mu.Unlock()
	if fault != nil {
		return fault
	}

	switch typeID {
	case uavo.DebugLogControlID:
		return d.control(data)
	case uavo.DebugLogStatusID, uavo.DebugLogEntryID:
		return fmt.Errorf("object 0x%08X is read-only: %w", typeID, link.ErrRejected)
	}

	if owner, ok := d.cat.MetaOwner(typeID); ok {
		var md settings.Metadata
		if err := md.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("%s metadata: %w", owner.Name, link.ErrRejected)
		}
		d.log.Debug("logging setting changed", "object", owner.Name, "cadence", settings.CadenceOf(md))
		return d.store.PutObject(typeID, instance, data)
	}

	t, ok := d.cat.Lookup(typeID)
	if !ok {
		return fmt.Errorf("object 0x%08X: %w", typeID, link.ErrNotFound)
	}
	if len(data) < t.Size() {
		return fmt.Errorf("%s: %d bytes, want %d: %w", t.Name, len(data), t.Size(), link.ErrRejected)
	}
	return d.store.PutObject(typeID, instance, data)
}

func (d *Device) control(data []byte) error {
	var c link.LogControl
	if err := c.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%w: %w", link.ErrRejected, err)
	}

	switch c.Operation {
	case uavo.OperationFormatFlash:
		d.log.Info("formatting log store")
		if err := d.store.Format(); err != nil {
			return err
		}
		c = link.LogControl{}
	case uavo.OperationRetrieve, uavo.OperationNone:
	default:
		return fmt.Errorf("operation %d: %w", c.Operation, link.ErrRejected)
	}

	d.mu.Lock()
	d.selected = c
	d.mu.Unlock()
	return nil
}
