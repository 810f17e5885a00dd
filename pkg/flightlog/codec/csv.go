package codec

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
)

// CSVHeader is the header row written by CSVWriter.
var CSVHeader = []string{"timestamp_ms", "flight", "entry", "object", "instance", "data"}

// CSVWriter writes one row per entry. Every row is flushed as it is written.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSV writer on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (c *CSVWriter) WriteHeader() error {
	return c.write(CSVHeader)
}

// WriteEntry writes the row for one entry.
func (c *CSVWriter) WriteEntry(e *logbook.Entry, baseTimeMs int64) error {
	return c.write([]string{
		strconv.FormatInt(e.CorrectedTime(baseTimeMs), 10),
		strconv.FormatUint(uint64(e.Flight), 10),
		strconv.FormatUint(uint64(e.Index), 10),
		e.Name(),
		strconv.FormatUint(uint64(e.InstanceID), 10),
		Data(e),
	})
}

func (c *CSVWriter) write(record []string) error {
	if err := c.w.Write(record); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
