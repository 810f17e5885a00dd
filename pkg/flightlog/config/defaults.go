// Package config provides configuration management for flightlog and the
// simulator daemon.
package config

import "time"

// Default configuration values.
const (
	// AppName names the XDG directories and the environment prefix.
	AppName = "flightlog"

	// DefaultLinkMode selects how the CLI reaches a device.
	DefaultLinkMode = LinkDaemon

	// DefaultRequestTimeout bounds one device round trip.
	DefaultRequestTimeout = 4 * time.Second

	// DefaultMaxRetries is how often an unanswered request is re-sent.
	DefaultMaxRetries = 3

	// DefaultExportFormat is used when neither flag nor extension names one.
	DefaultExportFormat = "csv"

	// DefaultSimFlights and DefaultSimEntries shape the generated log.
	DefaultSimFlights = 3
	DefaultSimEntries = 250

	// DefaultCacheMaxAge bounds how long a retrieved log is reused.
	DefaultCacheMaxAge = 24 * time.Hour

	// DefaultRetentionDays is how long history entries are kept.
	DefaultRetentionDays = 30
)

// Link modes.
const (
	LinkDaemon = "daemon"
	LinkSim    = "sim"
)

// DefaultComponentLevels sets per-component log levels.
var DefaultComponentLevels = map[string]string{
	"retrieval": "info",
	"link":      "warn",
	"device":    "info",
	"seeder":    "info",
	"daemon":    "info",
	"tui":       "info",
}
