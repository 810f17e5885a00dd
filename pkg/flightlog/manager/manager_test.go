package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/flightlog/pkg/daemon/device"
	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/events"
	"github.com/jamesainslie/flightlog/pkg/flightlog/export"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

type fixture struct {
	dev *device.Device
	tr  *link.Async
	m   *Manager
}

func newFixture(t *testing.T, flights, entries int, aopts link.AsyncOptions) *fixture {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)

	cat := uavo.Default()
	_, err = device.Seed(s, cat, device.GenerateOptions{Flights: flights, EntriesPerFlight: entries, Seed: 1})
	require.NoError(t, err)

	dev := device.New(cat, s)
	tr := link.NewAsync(dev, aopts)
	m := New(tr, Options{
		Catalogue:       cat,
		Retrieval:       retrieval.Options{RequestTimeout: 50 * time.Millisecond, MaxRetries: 5},
		SettingsTimeout: 100 * time.Millisecond,
	})

	t.Cleanup(func() {
		m.Close()
		_ = tr.Close()
		_ = s.Close()
	})
	return &fixture{dev: dev, tr: tr, m: m}
}

func TestRetrieveSingleFlight(t *testing.T) {
	f := newFixture(t, 3, 3, link.AsyncOptions{})
	sub := f.m.Subscribe(events.RetrievalFinished)

	res, err := f.m.RetrieveLogs(context.Background(), retrieval.SingleFlight(2))
	require.NoError(t, err)
	assert.Equal(t, retrieval.OutcomeSuccess, res.Outcome)

	var keys []logbook.Key
	for _, e := range f.m.Entries() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []logbook.Key{{Flight: 2, Index: 0}, {Flight: 2, Index: 1}, {Flight: 2, Index: 2}}, keys)
	assert.Equal(t, logbook.FlightIndexSet{2}, f.m.Flights())

	ev := <-sub.Events
	assert.Equal(t, events.RetrievalFinished, ev.Kind)
	assert.NoError(t, ev.Err)
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected second terminal event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, res.Outcome, f.m.LastRetrieval().Outcome)
}

func TestRetrieveAllWithDuplicates(t *testing.T) {
	f := newFixture(t, 3, 6, link.AsyncOptions{DuplicateEvery: 2})

	res, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	require.NoError(t, err)
	assert.Equal(t, 18, res.Entries)
	assert.Equal(t, 18, len(f.m.Entries()))
	assert.Equal(t, logbook.FlightIndexSet{0, 1, 2}, f.m.Flights())
	assert.False(t, f.m.DisableExport())
}

func TestRetrieveClearsPreviousLog(t *testing.T) {
	f := newFixture(t, 2, 4, link.AsyncOptions{})

	_, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	require.NoError(t, err)
	require.Equal(t, 8, len(f.m.Entries()))

	_, err = f.m.RetrieveLogs(context.Background(), retrieval.SingleFlight(0))
	require.NoError(t, err)
	assert.Equal(t, 4, len(f.m.Entries()))
}

func TestCancelRetrievalKeepsPartialLog(t *testing.T) {
	f := newFixture(t, 1, 200, link.AsyncOptions{Latency: 2 * time.Millisecond})
	sub := f.m.Subscribe(events.RetrievalProgress)

	go func() {
		for ev := range sub.Events {
			if p := ev.Payload.(retrieval.Progress); p.Entries >= 5 {
				f.m.CancelRetrieval()
				return
			}
		}
	}()

	res, err := f.m.RetrieveLogs(context.Background(), retrieval.SingleFlight(0))
	assert.ErrorIs(t, err, retrieval.ErrCancelled)
	assert.Equal(t, retrieval.OutcomeCancelled, res.Outcome)

	entries := f.m.Entries()
	assert.Equal(t, res.Entries, len(entries))
	assert.GreaterOrEqual(t, len(entries), 5)
	assert.Less(t, len(entries), 200)
	for i, e := range entries {
		assert.Equal(t, uint16(i), e.Index)
	}
}

func TestBusyRejectsSecondOperation(t *testing.T) {
	f := newFixture(t, 1, 50, link.AsyncOptions{Latency: 5 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	}()

	require.Eventually(t, f.m.DisableControls, time.Second, time.Millisecond)
	assert.Equal(t, OpRetrieve, f.m.Operation())
	assert.True(t, f.m.DisableExport())

	_, err := f.m.ExportLogs(context.Background(), export.Config{Path: filepath.Join(t.TempDir(), "x.csv"), Format: export.FormatCSV})
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, f.m.CommitSettings(context.Background()), ErrBusy)
	assert.ErrorIs(t, f.m.ClearAllLogs(context.Background()), ErrBusy)

	f.m.CancelRetrieval()
	<-done
	assert.False(t, f.m.DisableControls())
	assert.Equal(t, OpNone, f.m.Operation())
}

func TestExportAfterRetrieve(t *testing.T) {
	f := newFixture(t, 2, 5, link.AsyncOptions{})
	_, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	require.NoError(t, err)

	sub := f.m.Subscribe(events.ExportProgress, events.ExportFinished)
	path := filepath.Join(t.TempDir(), "log.opl")

	res, err := f.m.ExportLogs(context.Background(), export.Config{Format: export.FormatOPL, Path: path})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Entries)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	got, err := codec.ReadOPL(file, f.m.Catalogue())
	require.NoError(t, err)
	for i, e := range f.m.Entries() {
		assert.Equal(t, e.Raw, got[i].Raw)
	}

	var progress int
	for ev := range sub.Events {
		if ev.Kind == events.ExportFinished {
			break
		}
		progress++
	}
	assert.Equal(t, 10, progress)
}

func TestCancelExportLogs(t *testing.T) {
	f := newFixture(t, 1, 300, link.AsyncOptions{})
	_, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	require.NoError(t, err)

	sub := f.m.Subscribe(events.ExportProgress)
	go func() {
		for range sub.Events {
			f.m.CancelExportLogs()
		}
	}()

	res, err := f.m.ExportLogs(context.Background(), export.Config{Format: export.FormatXML, Path: filepath.Join(t.TempDir(), "log.xml")})
	assert.ErrorIs(t, err, export.ErrCancelled)
	assert.Less(t, res.Entries, 300)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t, 0, 0, link.AsyncOptions{})
	ctx := context.Background()

	descs, err := f.m.LoadSettings(ctx)
	require.NoError(t, err)
	require.Len(t, descs, len(uavo.Default().Loggable()))
	for _, d := range descs {
		assert.Equal(t, settings.Disabled, d.Cadence)
	}

	require.NoError(t, f.m.ApplySetting("Gyros", settings.Every10ms))
	require.NoError(t, f.m.ApplySetting("BaroAltitude", settings.OnChange))
	assert.Len(t, f.m.StagedSettings(), 2)
	require.NoError(t, f.m.CommitSettings(ctx))
	assert.Empty(t, f.m.StagedSettings())

	descs, err = f.m.LoadSettings(ctx)
	require.NoError(t, err)
	byName := map[string]settings.Cadence{}
	for _, d := range descs {
		byName[d.Name] = d.Cadence
	}
	assert.Equal(t, settings.Every10ms, byName["Gyros"])
	assert.Equal(t, settings.OnChange, byName["BaroAltitude"])
	assert.Equal(t, settings.Disabled, byName["AttitudeActual"])
}

func TestCommitPartialFailure(t *testing.T) {
	f := newFixture(t, 0, 0, link.AsyncOptions{})
	ctx := context.Background()

	gps, _ := uavo.Default().Lookup(uavo.GPSPositionID)
	f.dev.InjectFault(gps.MetaID(), link.ErrRejected)

	for _, d := range f.m.Settings() {
		require.NoError(t, f.m.ApplySetting(d.Name, settings.Every1s))
	}
	err := f.m.CommitSettings(ctx)

	var pf *settings.PartialFailure
	require.ErrorAs(t, err, &pf)
	require.Len(t, pf.Failed, 1)
	assert.Equal(t, "GPSPosition", pf.Failed[0].Name)
	assert.Equal(t, []settings.Descriptor{pf.Failed[0]}, f.m.StagedSettings())

	for _, d := range f.m.Settings() {
		if d.Name == "GPSPosition" {
			assert.Equal(t, settings.Disabled, d.Cadence)
		} else {
			assert.Equal(t, settings.Every1s, d.Cadence)
		}
	}
}

func TestClearAllLogs(t *testing.T) {
	f := newFixture(t, 2, 3, link.AsyncOptions{})
	ctx := context.Background()
	_, err := f.m.RetrieveLogs(ctx, retrieval.AllFlights())
	require.NoError(t, err)

	sub := f.m.Subscribe(events.LogsCleared)
	require.NoError(t, f.m.ClearAllLogs(ctx))
	assert.Empty(t, f.m.Entries())
	assert.Empty(t, f.m.Flights())
	assert.True(t, f.m.DisableExport())
	assert.Equal(t, events.LogsCleared, (<-sub.Events).Kind)

	require.Eventually(t, func() bool { return f.dev.Store().CountEntries() == 0 }, time.Second, 5*time.Millisecond)

	res, err := f.m.RetrieveLogs(ctx, retrieval.AllFlights())
	require.NoError(t, err)
	assert.Zero(t, res.Entries)
}

func TestRestore(t *testing.T) {
	f := newFixture(t, 1, 4, link.AsyncOptions{})
	_, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	require.NoError(t, err)
	entries := f.m.Entries()

	other := newFixture(t, 0, 0, link.AsyncOptions{})
	n, err := other.m.Restore(append(entries, entries[0]))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, logbook.FlightIndexSet{0}, other.m.Flights())
}

func TestStateEvents(t *testing.T) {
	f := newFixture(t, 1, 2, link.AsyncOptions{})
	sub := f.m.Subscribe(events.StateChanged)

	_, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	require.NoError(t, err)

	first := (<-sub.Events).Payload.(State)
	assert.True(t, first.DisableControls)
	assert.Equal(t, OpRetrieve, first.Operation)

	last := (<-sub.Events).Payload.(State)
	assert.False(t, last.DisableControls)
	assert.Equal(t, 2, last.Entries)
}

func TestRetrieveTransportClosed(t *testing.T) {
	f := newFixture(t, 1, 2, link.AsyncOptions{})
	_ = f.tr.Close()

	_, err := f.m.RetrieveLogs(context.Background(), retrieval.AllFlights())
	assert.True(t, errors.Is(err, link.ErrClosed) || errors.Is(err, retrieval.ErrRequestTimeout), "got %v", err)
}
