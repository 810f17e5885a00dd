package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// yamlMeta represents metadata in YAML output.
type yamlMeta struct {
	Source      string   `yaml:"source"`
	Outcome     string   `yaml:"outcome,omitempty"`
	RetrievedAt string   `yaml:"retrieved_at,omitempty"`
	Cached      bool     `yaml:"cached"`
	Elapsed     string   `yaml:"elapsed,omitempty"`
	Rows        int      `yaml:"rows"`
	TotalBytes  int64    `yaml:"total_bytes,omitempty"`
	Warnings    []string `yaml:"warnings,omitempty"`
	Interrupted bool     `yaml:"interrupted"`
}

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	View     View          `yaml:"view"`
	Entries  []EntryInfo   `yaml:"entries,omitempty"`
	Flights  []FlightInfo  `yaml:"flights,omitempty"`
	Settings []SettingInfo `yaml:"settings,omitempty"`
	History  []HistoryInfo `yaml:"history,omitempty"`
	Status   []StatusField `yaml:"status,omitempty"`
	Meta     yamlMeta      `yaml:"meta"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	j := buildJSON(r)
	out := yamlOutput{
		View:     j.View,
		Entries:  j.Entries,
		Flights:  j.Flights,
		Settings: j.Settings,
		History:  j.History,
		Status:   j.Status,
		Meta:     yamlMeta(j.Meta),
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
