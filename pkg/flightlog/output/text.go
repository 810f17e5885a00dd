package output

import (
	"bytes"
	"strings"
)

// TextFormatter writes one line per row with no header. Entries use their
// log line rendering:
//
//	12500 AttitudeActual[0] Roll=1.5 Pitch=-0.25 Yaw=90
//
// Other views join their columns with single spaces.
type TextFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TextFormatter) Format(w *bytes.Buffer, r *Result) error {
	if r.View == "" || r.View == ViewEntries {
		for _, e := range r.Entries {
			w.WriteString(e.Text)
			w.WriteByte('\n')
		}
		return nil
	}

	_, rows := r.Table()
	for _, row := range rows {
		w.WriteString(strings.TrimRight(strings.Join(row, " "), " "))
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("text", func() Formatter {
		return &TextFormatter{}
	})
}

// Ensure TextFormatter implements Formatter.
var _ Formatter = (*TextFormatter)(nil)
