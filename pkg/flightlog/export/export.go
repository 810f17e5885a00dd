// Package export writes a retrieved flight log to disk as OPL, CSV or XML.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// Export errors.
var (
	// ErrIOFailure wraps any failure to create or write the destination.
	// An entry whose payload cannot be decoded is reported as
	// codec.ErrMalformedRecord instead.
	ErrIOFailure = errors.New("export i/o failure")

	// ErrCancelled is returned when the context ends mid-export. Entries
	// written so far have been flushed.
	ErrCancelled = errors.New("export cancelled")

	// ErrUnknownFormat is returned for unsupported format names.
	ErrUnknownFormat = errors.New("unknown export format")
)

// Format is an export file format.
type Format int

// Export formats.
const (
	FormatOPL Format = iota
	FormatCSV
	FormatXML
)

var formatNames = map[Format]string{FormatOPL: "opl", FormatCSV: "csv", FormatXML: "xml"}

// String returns the lowercase format name, which is also its extension.
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", f)
}

// Formats returns the supported formats.
func Formats() []Format {
	return []Format{FormatOPL, FormatCSV, FormatXML}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Config describes one export.
type Config struct {
	Format Format
	Path   string

	// AdjustTimestamps rebases device offsets onto wall-clock time so that
	// the first entry is stamped with Anchor.
	AdjustTimestamps bool

	// Anchor is the wall-clock time of the first entry. Zero means now.
	Anchor time.Time
}

// Result describes a finished export.
type Result struct {
	Path       string        `json:"path"`
	Format     string        `json:"format"`
	Entries    int           `json:"entries"`
	Bytes      int64         `json:"bytes"`
	BaseTimeMs int64         `json:"base_time_ms"`
	Elapsed    time.Duration `json:"elapsed"`
}

// ProgressFunc is called after each written entry.
type ProgressFunc func(written, total int)

// BaseTime returns the bias added to every entry offset: zero, or when
// adjusting, the anchor in Unix milliseconds less the first entry's offset.
func BaseTime(entries []*logbook.Entry, cfg Config, now time.Time) int64 {
	if !cfg.AdjustTimestamps || len(entries) == 0 {
		return 0
	}
	anchor := cfg.Anchor
	if anchor.IsZero() {
		anchor = now
	}
	return anchor.UnixMilli() - int64(entries[0].OffsetMs)
}

// entryWriter is the per-format streaming writer.
type entryWriter interface {
	begin() error
	write(e *logbook.Entry, baseTimeMs int64) error
	end() error
}

type oplWriter struct{ w *codec.OPLWriter }

func (o oplWriter) begin() error { return o.w.WriteHeader() }
func (o oplWriter) write(e *logbook.Entry, _ int64) error { return o.w.WriteEntry(e) }
func (o oplWriter) end() error { return nil }

type csvWriter struct{ w *codec.CSVWriter }

func (c csvWriter) begin() error { return c.w.WriteHeader() }
func (c csvWriter) write(e *logbook.Entry, base int64) error { return c.w.WriteEntry(e, base) }
func (c csvWriter) end() error { return nil }

type xmlWriter struct{ w *codec.XMLWriter }

func (x xmlWriter) begin() error { return x.w.Begin() }
func (x xmlWriter) write(e *logbook.Entry, base int64) error { return x.w.WriteEntry(e, base) }
func (x xmlWriter) end() error { return x.w.End() }

func newEntryWriter(f Format, w io.Writer) (entryWriter, error) {
	switch f {
	case FormatOPL:
		return oplWriter{codec.NewOPLWriter(w)}, nil
	case FormatCSV:
		return csvWriter{codec.NewCSVWriter(w)}, nil
	case FormatXML:
		return xmlWriter{codec.NewXMLWriter(w)}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// countingWriter tracks bytes handed to the file.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Export streams entries to cfg.Path in order, one at a time. ctx is checked
// between entries. On cancellation the entries already written are flushed
// and the file is left in place for the caller to keep or remove.
func Export(ctx context.Context, entries []*logbook.Entry, cfg Config, progress ProgressFunc) (Result, error) {
	lg := logging.Get("export")
	start := time.Now()
	res := Result{Path: cfg.Path, Format: cfg.Format.String(), BaseTimeMs: BaseTime(entries, cfg, start)}

	if _, ok := formatNames[cfg.Format]; !ok {
		return res, fmt.Errorf("%w: %v", ErrUnknownFormat, cfg.Format)
	}

	f, err := os.Create(cfg.Path)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	counter := &countingWriter{w: f}
	buf := bufio.NewWriter(counter)
	ew, _ := newEntryWriter(cfg.Format, buf)

	finish := func(cause error) (Result, error) {
		flushErr := buf.Flush()
		closeErr := f.Close()
		res.Bytes = counter.n
		res.Elapsed = time.Since(start)
		if cause == nil {
			cause = errors.Join(flushErr, closeErr)
			if cause != nil {
				cause = fmt.Errorf("%w: %w", ErrIOFailure, cause)
			}
		}
		if cause != nil {
			lg.Warn("export stopped", "path", cfg.Path, "written", res.Entries, "error", cause)
			return res, cause
		}
		lg.Info("export finished", "path", cfg.Path, "format", res.Format, "entries", res.Entries, "bytes", res.Bytes)
		return res, nil
	}

	if err := ew.begin(); err != nil {
		return finish(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return finish(fmt.Errorf("%w after %d of %d entries", ErrCancelled, res.Entries, len(entries)))
		}
		if err := ew.write(e, res.BaseTimeMs); err != nil {
			if errors.Is(err, codec.ErrMalformedRecord) {
				return finish(err)
			}
			return finish(fmt.Errorf("%w: entry %s: %w", ErrIOFailure, e.Key(), err))
		}
		res.Entries++
		if progress != nil {
			progress(res.Entries, len(entries))
		}
	}
	if err := ew.end(); err != nil {
		return finish(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return finish(nil)
}
