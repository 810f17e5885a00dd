package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// logDevice answers the debug-log objects from an in-memory set of flights.
type logDevice struct {
	mu       sync.Mutex
	flights  map[uint16]int
	selected link.LogControl
	block    chan struct{}

	// lostSelects fails the next n select writes for a position.
	lostSelects map[logbook.Key]int
}

func (d *logDevice) ReadObject(ctx context.Context, typeID uint32, _ uint16) ([]byte, error) {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	switch typeID {
	case uavo.DebugLogStatusID:
		var last uint16
		for f := range d.flights {
			last = max(last, f)
		}
		return link.LogStatus{Flight: last}.MarshalBinary()
	case uavo.DebugLogEntryID:
		f, i := d.selected.Flight, d.selected.Entry
		if int(i) >= d.flights[f] {
			return codec.EndOfFlight(f, i), nil
		}
		return record(f, i, uint32(i)*10), nil
	}
	return nil, link.ErrNotFound
}

func (d *logDevice) WriteObject(_ context.Context, typeID uint32, _ uint16, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if typeID != uavo.DebugLogControlID {
		return link.ErrNotFound
	}
	var ctl link.LogControl
	if err := ctl.UnmarshalBinary(data); err != nil {
		return err
	}
	k := logbook.Key{Flight: ctl.Flight, Index: ctl.Entry}
	if d.lostSelects[k] > 0 {
		d.lostSelects[k]--
		return errors.New("bus error")
	}
	d.selected = ctl
	return nil
}

func runDriver(t *testing.T, ctx context.Context, dev link.Device, aopts link.AsyncOptions, opts Options, target Target) (*logbook.OrderedLog, Result, error) {
	t.Helper()
	tr := link.NewAsync(dev, aopts)
	defer tr.Close()

	dst := logbook.NewOrderedLog()
	eng := NewEngine(link.NewLogClient(tr), uavo.Default(), dst, opts, nil)
	res, err := NewDriver(eng, tr.Events()).Run(ctx, target)
	return dst, res, err
}

func TestDriverRetrievesAllFlights(t *testing.T) {
	dev := &logDevice{flights: map[uint16]int{0: 3, 1: 2}}
	dst, res, err := runDriver(t, context.Background(), dev, link.AsyncOptions{}, Options{}, AllFlights())

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 5, dst.Len())
	assert.Equal(t, logbook.FlightIndexSet{0, 1}, dst.Flights())
}

func TestDriverRecoversFromDroppedResponses(t *testing.T) {
	dev := &logDevice{flights: map[uint16]int{2: 6}}
	aopts := link.AsyncOptions{DropEvery: 5, DuplicateEvery: 3}
	opts := Options{RequestTimeout: 30 * time.Millisecond, MaxRetries: 5}

	dst, res, err := runDriver(t, context.Background(), dev, aopts, opts, SingleFlight(2))

	require.NoError(t, err)
	assert.Equal(t, 6, dst.Len())
	assert.Positive(t, res.Retries)
	for i, e := range dst.Entries() {
		assert.Equal(t, logbook.Key{Flight: 2, Index: uint16(i)}, e.Key())
	}
}

func TestDriverRecoversFromLostSelect(t *testing.T) {
	dev := &logDevice{
		flights:     map[uint16]int{2: 6},
		lostSelects: map[logbook.Key]int{{Flight: 2, Index: 3}: 1},
	}

	dst, res, err := runDriver(t, context.Background(), dev, link.AsyncOptions{}, Options{}, SingleFlight(2))

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 6, dst.Len())
	assert.Equal(t, 1, res.Mismatches)
	assert.Equal(t, 1, res.Retries)
	for i, e := range dst.Entries() {
		assert.Equal(t, logbook.Key{Flight: 2, Index: uint16(i)}, e.Key())
	}
}

func TestDriverFailsWhenSelectNeverLands(t *testing.T) {
	dev := &logDevice{
		flights:     map[uint16]int{1: 4},
		lostSelects: map[logbook.Key]int{{Flight: 1, Index: 2}: 100},
	}

	dst, res, err := runDriver(t, context.Background(), dev, link.AsyncOptions{}, Options{MaxRetries: 2}, SingleFlight(1))

	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, dst.Len())
}

func TestDriverFailsWhenDeviceIsSilent(t *testing.T) {
	dev := &logDevice{flights: map[uint16]int{0: 1}}
	aopts := link.AsyncOptions{DropEvery: 1}
	opts := Options{RequestTimeout: 10 * time.Millisecond, MaxRetries: 2}

	_, res, err := runDriver(t, context.Background(), dev, aopts, opts, SingleFlight(0))

	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, res.Retries)
}

func TestDriverContextCancel(t *testing.T) {
	dev := &logDevice{flights: map[uint16]int{0: 10}, block: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, res, err := runDriver(t, ctx, dev, link.AsyncOptions{CallTimeout: time.Second}, Options{RequestTimeout: time.Minute}, SingleFlight(0))

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestDriverCancel(t *testing.T) {
	dev := &logDevice{flights: map[uint16]int{0: 10}, block: make(chan struct{})}
	tr := link.NewAsync(dev, link.AsyncOptions{CallTimeout: time.Second})
	defer tr.Close()

	eng := NewEngine(link.NewLogClient(tr), uavo.Default(), logbook.NewOrderedLog(), Options{RequestTimeout: time.Minute}, nil)
	d := NewDriver(eng, tr.Events())

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Cancel()
	}()

	res, err := d.Run(context.Background(), AllFlights())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestDriverTransportClosed(t *testing.T) {
	tr := link.NewAsync(&logDevice{flights: map[uint16]int{}, block: make(chan struct{})}, link.AsyncOptions{})
	eng := NewEngine(link.NewLogClient(tr), uavo.Default(), logbook.NewOrderedLog(), Options{RequestTimeout: time.Minute}, nil)
	d := NewDriver(eng, tr.Events())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = tr.Close()
	}()

	_, err := d.Run(context.Background(), SingleFlight(0))
	assert.ErrorIs(t, err, link.ErrClosed)
}
