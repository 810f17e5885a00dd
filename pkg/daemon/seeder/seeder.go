// Package seeder loads OPL log files from a directory into the simulated
// device's log store, once at startup and again whenever a file appears or
// changes.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// Extension is the file extension of importable logs.
const Extension = ".opl"

// DefaultSettle is how long a file must stay quiet before it is imported.
const DefaultSettle = 250 * time.Millisecond

// Progress reports import progress.
type Progress struct {
	Dir         string
	FilesFound  int64
	FilesDone   int64
	CurrentPath string
}

// ProgressFunc is called with progress updates.
type ProgressFunc func(Progress)

// Result contains the outcome of an import.
type Result struct {
	Dir      string
	Files    int
	Skipped  int
	Flights  int
	Entries  int
	Failed   []string
	Duration time.Duration
}

// Seeder imports OPL files into a store.
type Seeder struct {
	store  *store.Store
	settle time.Duration
	log    *logging.Logger

	// importMu serializes imports so flights from one file stay contiguous.
	importMu sync.Mutex

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	closed  bool

	imported atomic.Int64
}

// New creates a seeder for s.
func New(s *store.Store) *Seeder {
	return &Seeder{
		store:  s,
		settle: DefaultSettle,
		log:    logging.Get("seeder"),
		timers: make(map[string]*time.Timer),
	}
}

// SetSettle changes the quiet period used by Watch.
func (sd *Seeder) SetSettle(d time.Duration) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.settle = d
}

// Imported returns how many files have been imported so far.
func (sd *Seeder) Imported() int64 {
	return sd.imported.Load()
}

// ImportDir imports every OPL file below dir that has not been imported
// with its current modification time. Files are imported in path order.
func (sd *Seeder) ImportDir(ctx context.Context, dir string, onProgress ProgressFunc) (*Result, error) {
	start := time.Now()
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.IsDir() || !isLogFile(path) {
			return nil
		}
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	res := &Result{Dir: absDir}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if onProgress != nil {
			onProgress(Progress{Dir: absDir, FilesFound: int64(len(paths)), FilesDone: int64(i), CurrentPath: path})
		}

		flights, entries, err := sd.ImportFile(path)
		switch {
		case errors.Is(err, ErrAlreadySeeded):
			res.Skipped++
		case err != nil:
			sd.log.Warn("failed to import log", "path", path, "error", err)
			res.Failed = append(res.Failed, path)
		default:
			res.Files++
			res.Flights += flights
			res.Entries += entries
		}
	}
	if onProgress != nil {
		onProgress(Progress{Dir: absDir, FilesFound: int64(len(paths)), FilesDone: int64(len(paths))})
	}

	res.Duration = time.Since(start)
	sd.log.Info("seed directory imported", "dir", absDir, "files", res.Files, "skipped", res.Skipped,
		"flights", res.Flights, "entries", res.Entries, "failed", len(res.Failed))
	return res, nil
}

// ErrAlreadySeeded is returned by ImportFile for unchanged files.
var ErrAlreadySeeded = errors.New("file already imported")

// ImportFile appends the flights of one OPL file to the store. Records are
// grouped into flights by their flight number; each group becomes a new
// flight after the last stored one.
func (sd *Seeder) ImportFile(path string) (flights, entries int, err error) {
	sd.importMu.Lock()
	defer sd.importMu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	modTime := info.ModTime().UnixNano()
	if sd.store.Seeded(path, modTime) {
		return 0, 0, ErrAlreadySeeded
	}

	groups, err := readFlights(path)
	if err != nil {
		return 0, 0, err
	}
	for _, g := range groups {
		if _, err := sd.store.AppendFlight(g); err != nil {
			return flights, entries, fmt.Errorf("storing flight: %w", err)
		}
		flights++
		entries += len(g)
	}
	if err := sd.store.MarkSeeded(path, modTime); err != nil {
		return flights, entries, err
	}

	sd.imported.Add(1)
	sd.log.Debug("imported log", "path", path, "flights", flights, "entries", entries)
	return flights, entries, nil
}

// readFlights reads every record of an OPL file, split wherever the flight
// number changes.
func readFlights(path string) ([][][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := codec.NewOPLReader(f)
	if err != nil {
		return nil, err
	}

	var (
		groups  [][][]byte
		current uint16
	)
	for {
		raw, err := r.Next()
		if errors.Is(err, io.EOF) {
			return groups, nil
		}
		if err != nil {
			return nil, err
		}
		key, err := codec.PeekKey(raw)
		if err != nil {
			return nil, err
		}
		if len(groups) == 0 || key.Flight != current {
			groups = append(groups, nil)
			current = key.Flight
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], raw)
	}
}

func isLogFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
