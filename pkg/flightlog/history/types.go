// Package history records retrieval, export and clear operations so that
// earlier runs can be listed.
package history

import "time"

// OperationType represents the type of operation.
type OperationType string

const (
	OpRetrieve OperationType = "retrieve"
	OpExport   OperationType = "export"
	OpClear    OperationType = "clear"
	OpSettings OperationType = "settings"
)

// Entry is one recorded operation.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Source    string        `json:"source"`
	Outcome   string        `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`

	// Retrieval.
	Target  string   `json:"target,omitempty"`
	Flights []uint16 `json:"flights,omitempty"`

	// Export.
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`

	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes,omitempty"`
}
