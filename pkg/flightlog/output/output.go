// Package output provides formatters for displaying retrieved flight logs,
// per-flight summaries, logging settings and operation history in various
// output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// View selects which section of a Result is rendered by tabular formatters.
type View string

// Views.
const (
	ViewEntries  View = "entries"
	ViewFlights  View = "flights"
	ViewSettings View = "settings"
	ViewHistory  View = "history"
	ViewStatus   View = "status"
)

// EntryInfo is one log entry prepared for display.
type EntryInfo struct {
	Flight   uint16 `json:"flight" yaml:"flight"`
	Index    uint16 `json:"index" yaml:"index"`
	Time     int64  `json:"time" yaml:"time"`
	Kind     string `json:"kind" yaml:"kind"`
	Name     string `json:"name" yaml:"name"`
	Instance uint16 `json:"instance" yaml:"instance"`
	Data     string `json:"data" yaml:"data"`

	// Text is the single line rendering used by the text formatter.
	Text string `json:"-" yaml:"-"`
}

// FlightInfo summarises one flight of a retrieved log.
type FlightInfo struct {
	Flight   uint16        `json:"flight" yaml:"flight"`
	Entries  int           `json:"entries" yaml:"entries"`
	FirstMs  uint32        `json:"first_ms" yaml:"first_ms"`
	LastMs   uint32        `json:"last_ms" yaml:"last_ms"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
}

// SettingInfo is one loggable object and its logging cadence.
type SettingInfo struct {
	Name    string `json:"name" yaml:"name"`
	TypeID  uint32 `json:"type_id" yaml:"type_id"`
	Cadence string `json:"cadence" yaml:"cadence"`

	// Staged is the cadence waiting to be committed, if it differs.
	Staged string `json:"staged,omitempty" yaml:"staged,omitempty"`
}

// HistoryInfo is one recorded operation.
type HistoryInfo struct {
	ID        string        `json:"id" yaml:"id"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Operation string        `json:"operation" yaml:"operation"`
	Outcome   string        `json:"outcome" yaml:"outcome"`
	Entries   int           `json:"entries" yaml:"entries"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Detail    string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatusField is one labelled value of a status report.
type StatusField struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Result contains the complete output data for formatting. Only the section
// named by View is rendered by the tabular formatters; the structured
// formatters emit every non-empty section.
type Result struct {
	View View `json:"view" yaml:"view"`

	Entries  []EntryInfo   `json:"entries,omitempty" yaml:"entries,omitempty"`
	Flights  []FlightInfo  `json:"flights,omitempty" yaml:"flights,omitempty"`
	Settings []SettingInfo `json:"settings,omitempty" yaml:"settings,omitempty"`
	History  []HistoryInfo `json:"history,omitempty" yaml:"history,omitempty"`
	Status   []StatusField `json:"status,omitempty" yaml:"status,omitempty"`

	// Source names where the data came from: a device, a cache or a file.
	Source string `json:"source" yaml:"source"`

	// Outcome is the retrieval outcome, if any.
	Outcome string `json:"outcome,omitempty" yaml:"outcome,omitempty"`

	// RetrievedAt is when the log was pulled from the device.
	RetrievedAt time.Time `json:"retrieved_at,omitempty" yaml:"retrieved_at,omitempty"`

	// Cached reports that the log was served from the local cache.
	Cached bool `json:"cached" yaml:"cached"`

	// Elapsed is how long producing the result took.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`

	// Warnings contains any warning messages generated along the way.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Interrupted indicates the operation was cancelled by the user.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// TotalBytes returns the raw record bytes across all flights.
func (r *Result) TotalBytes() int64 {
	var total int64
	for _, f := range r.Flights {
		total += f.Bytes
	}
	return total
}

// Len returns the number of rows in the current view.
func (r *Result) Len() int {
	switch r.View {
	case ViewFlights:
		return len(r.Flights)
	case ViewSettings:
		return len(r.Settings)
	case ViewHistory:
		return len(r.History)
	case ViewStatus:
		return len(r.Status)
	default:
		return len(r.Entries)
	}
}

// Table returns the header and rows of the current view as plain strings.
func (r *Result) Table() ([]string, [][]string) {
	switch r.View {
	case ViewFlights:
		rows := make([][]string, len(r.Flights))
		for i, f := range r.Flights {
			rows[i] = []string{u16(f.Flight), strconv.Itoa(f.Entries), formatDuration(f.Duration), strconv.FormatInt(f.Bytes, 10)}
		}
		return []string{"FLIGHT", "ENTRIES", "DURATION", "BYTES"}, rows
	case ViewSettings:
		rows := make([][]string, len(r.Settings))
		for i, s := range r.Settings {
			rows[i] = []string{s.Name, fmt.Sprintf("0x%08X", s.TypeID), s.Cadence, s.Staged}
		}
		return []string{"OBJECT", "ID", "CADENCE", "STAGED"}, rows
	case ViewHistory:
		rows := make([][]string, len(r.History))
		for i, h := range r.History {
			rows[i] = []string{h.ID, h.Timestamp.Format(time.DateTime), h.Operation, h.Outcome, strconv.Itoa(h.Entries), h.Detail}
		}
		return []string{"ID", "TIME", "OPERATION", "OUTCOME", "ENTRIES", "DETAIL"}, rows
	case ViewStatus:
		rows := make([][]string, len(r.Status))
		for i, s := range r.Status {
			rows[i] = []string{s.Name, s.Value}
		}
		return []string{"FIELD", "VALUE"}, rows
	default:
		rows := make([][]string, len(r.Entries))
		for i, e := range r.Entries {
			rows[i] = []string{u16(e.Flight), u16(e.Index), strconv.FormatInt(e.Time, 10), e.Name, e.Data}
		}
		return []string{"FLIGHT", "ENTRY", "TIME", "OBJECT", "DATA"}, rows
	}
}

func u16(v uint16) string {
	return strconv.FormatUint(uint64(v), 10)
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
