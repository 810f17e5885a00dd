package seeder

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/flightlog/pkg/daemon/device"
	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// writeOPL writes generated flights to path as one OPL file.
func writeOPL(t *testing.T, path string, flights, entries int, seed uint64) {
	t.Helper()
	recs, err := device.Generate(uavo.Default(), device.GenerateOptions{Flights: flights, EntriesPerFlight: entries, Seed: seed})
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	bw := bufio.NewWriter(f)
	w := codec.NewOPLWriter(bw)
	require.NoError(t, w.WriteHeader())
	for _, flight := range recs {
		for _, raw := range flight {
			require.NoError(t, w.WriteEntry(&logbook.Entry{Raw: raw}))
		}
	}
	require.NoError(t, bw.Flush())
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeOPL(t, filepath.Join(dir, "a.opl"), 2, 5, 1)
	writeOPL(t, filepath.Join(dir, "nested", "b.OPL"), 1, 4, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.opl"), []byte("nope"), 0o644))

	s := openStore(t)
	sd := New(s)

	var last Progress
	res, err := sd.ImportDir(context.Background(), dir, func(p Progress) { last = p })
	require.NoError(t, err)

	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 3, res.Flights)
	assert.Equal(t, 14, res.Entries)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken.opl", filepath.Base(res.Failed[0]))
	assert.Equal(t, int64(3), last.FilesFound)
	assert.Equal(t, last.FilesFound, last.FilesDone)

	flights, err := s.Flights()
	require.NoError(t, err)
	require.Len(t, flights, 3)
	assert.Equal(t, 5, flights[0].Entries)
	assert.Equal(t, 4, flights[2].Entries)

	// Records are renumbered into their new flight.
	raw, err := s.Record(2, 3)
	require.NoError(t, err)
	key, err := codec.PeekKey(raw)
	require.NoError(t, err)
	assert.Equal(t, logbook.Key{Flight: 2, Index: 3}, key)

	// A second pass skips unchanged files.
	res, err = sd.ImportDir(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Files)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, int64(2), sd.Imported())
}

func TestImportFileChangedIsReimported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.opl")
	writeOPL(t, path, 1, 3, 1)

	s := openStore(t)
	sd := New(s)

	_, _, err := sd.ImportFile(path)
	require.NoError(t, err)
	_, _, err = sd.ImportFile(path)
	assert.ErrorIs(t, err, ErrAlreadySeeded)

	writeOPL(t, path, 1, 6, 2)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	flights, entries, err := sd.ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, flights)
	assert.Equal(t, 6, entries)
	assert.Equal(t, int64(9), s.CountEntries())
}

func TestImportDirCancelled(t *testing.T) {
	dir := t.TempDir()
	writeOPL(t, filepath.Join(dir, "a.opl"), 1, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(openStore(t)).ImportDir(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatchImportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t)
	sd := New(s)
	sd.SetSettle(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sd.Watch(ctx, dir) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeOPL(t, filepath.Join(dir, "new.opl"), 2, 3, 9)

	assert.Eventually(t, func() bool { return s.CountEntries() == 6 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, sd.Close())
}
