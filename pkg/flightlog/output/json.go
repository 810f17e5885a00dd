package output

import (
	"bytes"
	"encoding/json"
)

// jsonMeta represents metadata in JSON output.
type jsonMeta struct {
	Source      string   `json:"source"`
	Outcome     string   `json:"outcome,omitempty"`
	RetrievedAt string   `json:"retrieved_at,omitempty"`
	Cached      bool     `json:"cached"`
	Elapsed     string   `json:"elapsed,omitempty"`
	Rows        int      `json:"rows"`
	TotalBytes  int64    `json:"total_bytes,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted"`
}

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	View     View          `json:"view"`
	Entries  []EntryInfo   `json:"entries,omitempty"`
	Flights  []FlightInfo  `json:"flights,omitempty"`
	Settings []SettingInfo `json:"settings,omitempty"`
	History  []HistoryInfo `json:"history,omitempty"`
	Status   []StatusField `json:"status,omitempty"`
	Meta     jsonMeta      `json:"meta"`
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildJSON(r))
}

func buildJSON(r *Result) jsonOutput {
	meta := jsonMeta{
		Source:      r.Source,
		Outcome:     r.Outcome,
		Cached:      r.Cached,
		Elapsed:     formatDurationString(r.Elapsed),
		Rows:        r.Len(),
		TotalBytes:  r.TotalBytes(),
		Warnings:    r.Warnings,
		Interrupted: r.Interrupted,
	}
	if !r.RetrievedAt.IsZero() {
		meta.RetrievedAt = r.RetrievedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return jsonOutput{
		View:     r.View,
		Entries:  r.Entries,
		Flights:  r.Flights,
		Settings: r.Settings,
		History:  r.History,
		Status:   r.Status,
		Meta:     meta,
	}
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats the rows of the current view as newline-delimited
// JSON, one compact object per line, for tools like jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, item := range r.items() {
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

// items returns the rows of the current view as values.
func (r *Result) items() []any {
	var out []any
	switch r.View {
	case ViewFlights:
		for _, v := range r.Flights {
			out = append(out, v)
		}
	case ViewSettings:
		for _, v := range r.Settings {
			out = append(out, v)
		}
	case ViewHistory:
		for _, v := range r.History {
			out = append(out, v)
		}
	case ViewStatus:
		for _, v := range r.Status {
			out = append(out, v)
		}
	default:
		for _, v := range r.Entries {
			out = append(out, v)
		}
	}
	return out
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
