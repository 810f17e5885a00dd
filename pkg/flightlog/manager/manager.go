// Package manager is the façade the CLI and daemon drive: it owns the
// retrieved log, the settings mirror and the two engines, and makes sure at
// most one device or export operation runs at a time.
package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/events"
	"github.com/jamesainslie/flightlog/pkg/flightlog/export"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// ErrBusy is returned when an operation is started while another runs.
var ErrBusy = errors.New("another operation is in progress")

// Operation names what the manager is doing.
type Operation int

const (
	OpNone Operation = iota
	OpRetrieve
	OpExport
	OpLoadSettings
	OpCommitSettings
	OpClear
	OpRestore
)

var opNames = [...]string{"idle", "retrieve", "export", "load-settings", "commit-settings", "clear", "restore"}

func (o Operation) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Options configures a Manager.
type Options struct {
	// Catalogue resolves object types. Defaults to uavo.Default().
	Catalogue *uavo.Catalogue

	// Retrieval bounds each retrieval round trip.
	Retrieval retrieval.Options

	// SettingsTimeout bounds each settings round trip.
	SettingsTimeout time.Duration
}

// State is a snapshot of the observable flags.
type State struct {
	Operation       Operation `json:"operation"`
	Entries         int       `json:"entries"`
	Flights         []uint16  `json:"flights"`
	DisableControls bool      `json:"disable_controls"`
	DisableExport   bool      `json:"disable_export"`
}

// ExportProgress is the payload of export progress events.
type ExportProgress struct {
	Written int
	Total   int
}

// Manager owns the flight log of one device link. The transport is owned by
// the caller; Manager must be its only consumer of events.
type Manager struct {
	cat    *uavo.Catalogue
	tr     link.Transport
	opts   Options
	log    *logbook.OrderedLog
	mirror *settings.Mirror
	bus    *events.Broadcaster
	lg     *logging.Logger

	busy atomic.Bool
	op   atomic.Int32

	mu           sync.Mutex
	driver       *retrieval.Driver
	exportCancel context.CancelFunc
	last         retrieval.Result
}

// New creates a manager over tr.
func New(tr link.Transport, opts Options) *Manager {
	if opts.Catalogue == nil {
		opts.Catalogue = uavo.Default()
	}
	if opts.SettingsTimeout <= 0 {
		opts.SettingsTimeout = link.DefaultTimeout
	}
	return &Manager{
		cat:    opts.Catalogue,
		tr:     tr,
		opts:   opts,
		log:    logbook.NewOrderedLog(),
		mirror: settings.NewMirror(opts.Catalogue, link.NewCaller(tr, opts.SettingsTimeout)),
		bus:    events.New(),
		lg:     logging.Get("manager"),
	}
}

// Catalogue returns the object catalogue in use.
func (m *Manager) Catalogue() *uavo.Catalogue { return m.cat }

// Subscribe registers for state change events of the given kinds, or all.
func (m *Manager) Subscribe(kinds ...events.Kind) *events.Subscriber {
	return m.bus.Subscribe(kinds...)
}

// Unsubscribe ends a subscription.
func (m *Manager) Unsubscribe(id string) { m.bus.Unsubscribe(id) }

// Close cancels whatever is running and closes every subscription. It does
// not close the transport.
func (m *Manager) Close() {
	m.CancelRetrieval()
	m.CancelExportLogs()
	m.bus.Close()
}

func (m *Manager) acquire(op Operation) error {
	if !m.busy.CompareAndSwap(false, true) {
		m.lg.Debug("operation rejected", "requested", op, "running", m.Operation())
		return ErrBusy
	}
	m.op.Store(int32(op))
	m.publishState()
	return nil
}

func (m *Manager) release() {
	m.op.Store(int32(OpNone))
	m.busy.Store(false)
	m.publishState()
}

func (m *Manager) publish(kind events.Kind, payload any, err error) {
	m.bus.Publish(events.Event{Kind: kind, Payload: payload, Err: err})
}

func (m *Manager) publishState() {
	m.publish(events.StateChanged, m.State(), nil)
}

// Operation returns the operation in progress.
func (m *Manager) Operation() Operation { return Operation(m.op.Load()) }

// DisableControls reports whether an operation is running.
func (m *Manager) DisableControls() bool { return m.busy.Load() }

// DisableExport reports whether exporting is currently impossible: an
// operation is running or there is nothing to export.
func (m *Manager) DisableExport() bool { return m.busy.Load() || m.log.Len() == 0 }

// Entries returns the retrieved entries in retrieval order.
func (m *Manager) Entries() []*logbook.Entry { return m.log.Entries() }

// Flights returns the distinct flight indices of the retrieved entries.
func (m *Manager) Flights() logbook.FlightIndexSet { return m.log.Flights() }

// Settings returns the mirrored logging settings.
func (m *Manager) Settings() []settings.Descriptor { return m.mirror.Descriptors() }

// StagedSettings returns the settings changes awaiting commit.
func (m *Manager) StagedSettings() []settings.Descriptor { return m.mirror.Staged() }

// LastRetrieval returns the result of the most recent retrieval.
func (m *Manager) LastRetrieval() retrieval.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// State returns a snapshot of the observable state.
func (m *Manager) State() State {
	return State{
		Operation:       m.Operation(),
		Entries:         m.log.Len(),
		Flights:         m.log.Flights(),
		DisableControls: m.DisableControls(),
		DisableExport:   m.DisableExport(),
	}
}

// RetrieveLogs clears the log and retrieves target from the device. It
// blocks until the session ends; progress is published as events. Entries
// retrieved before a failure or cancellation are kept.
func (m *Manager) RetrieveLogs(ctx context.Context, target retrieval.Target) (retrieval.Result, error) {
	if err := m.acquire(OpRetrieve); err != nil {
		return retrieval.Result{}, err
	}
	defer m.release()

	obs := retrieval.ObserverFuncs{
		Progress: func(p retrieval.Progress) {
			m.publish(events.RetrievalProgress, p, nil)
		},
	}
	eng := retrieval.NewEngine(link.NewLogClient(m.tr), m.cat, m.log, m.opts.Retrieval, obs)
	d := retrieval.NewDriver(eng, m.tr.Events())

	m.mu.Lock()
	m.driver = d
	m.mu.Unlock()

	res, err := d.Run(ctx, target)

	m.mu.Lock()
	m.driver = nil
	m.last = res
	m.mu.Unlock()

	m.lg.Info("retrieval finished", "target", target, "outcome", res.Outcome, "entries", res.Entries, "flights", len(res.Flights))
	m.publish(events.RetrievalFinished, res, err)
	return res, err
}

// CancelRetrieval cancels a running retrieval. It is a no-op otherwise.
func (m *Manager) CancelRetrieval() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.driver != nil {
		m.driver.Cancel()
	}
}

// ExportLogs writes the retrieved log to cfg.Path.
func (m *Manager) ExportLogs(ctx context.Context, cfg export.Config) (export.Result, error) {
	if err := m.acquire(OpExport); err != nil {
		return export.Result{}, err
	}
	defer m.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	m.exportCancel = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.exportCancel = nil
		m.mu.Unlock()
	}()

	res, err := export.Export(ctx, m.log.Entries(), cfg, func(written, total int) {
		m.publish(events.ExportProgress, ExportProgress{Written: written, Total: total}, nil)
	})
	m.publish(events.ExportFinished, res, err)
	return res, err
}

// CancelExportLogs cancels a running export. It is a no-op otherwise.
func (m *Manager) CancelExportLogs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exportCancel != nil {
		m.exportCancel()
	}
}

// LoadSettings reads every logging setting from the device.
func (m *Manager) LoadSettings(ctx context.Context) ([]settings.Descriptor, error) {
	if err := m.acquire(OpLoadSettings); err != nil {
		return nil, err
	}
	defer m.release()

	descs, err := m.mirror.Load(ctx)
	m.publish(events.SettingsLoaded, descs, err)
	return descs, err
}

// ApplySetting stages a cadence change for the named object.
func (m *Manager) ApplySetting(name string, c settings.Cadence) error {
	return m.mirror.Apply(name, c)
}

// DiscardSettings drops staged changes.
func (m *Manager) DiscardSettings() { m.mirror.Discard() }

// CommitSettings writes staged changes to the device. A *settings.PartialFailure
// names the objects whose write failed.
func (m *Manager) CommitSettings(ctx context.Context) error {
	if err := m.acquire(OpCommitSettings); err != nil {
		return err
	}
	defer m.release()

	err := m.mirror.Commit(ctx)
	m.publish(events.SettingsCommitted, m.mirror.Descriptors(), err)
	return err
}

// ClearAllLogs tells the device to erase its log store and clears the local
// log. The erase is not awaited.
func (m *Manager) ClearAllLogs(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.acquire(OpClear); err != nil {
		return err
	}
	defer m.release()

	id := link.NewLogClient(m.tr).FormatFlash()
	m.log.Reset()
	m.lg.Info("log store erase requested", "request", id)
	m.publish(events.LogsCleared, nil, nil)
	return nil
}

// Restore replaces the log with previously retrieved entries, for example
// from the cache. Duplicate keys are dropped.
func (m *Manager) Restore(entries []*logbook.Entry) (int, error) {
	if err := m.acquire(OpRestore); err != nil {
		return 0, err
	}
	defer m.release()

	m.log.Reset()
	n := 0
	for _, e := range entries {
		if m.log.Append(e) {
			n++
		}
	}
	m.lg.Debug("log restored", "entries", n, "dropped", len(entries)-n)
	return n, nil
}
