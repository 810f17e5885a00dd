package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/flightlog/pkg/flightlog/export"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// LinkConfig configures how the CLI talks to a device.
type LinkConfig struct {
	Mode           string        `mapstructure:"mode"` // daemon or sim
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Format           string `mapstructure:"format"`
	AdjustTimestamps bool   `mapstructure:"adjust_timestamps"`
	Directory        string `mapstructure:"directory"`
}

// SimConfig shapes the simulated device, in process or in the daemon.
type SimConfig struct {
	Flights          int           `mapstructure:"flights"`
	EntriesPerFlight int           `mapstructure:"entries_per_flight"`
	Seed             uint64        `mapstructure:"seed"`
	Latency          time.Duration `mapstructure:"latency"`
	DropEvery        int           `mapstructure:"drop_every"`
	DuplicateEvery   int           `mapstructure:"duplicate_every"`
}

// DaemonConfig configures the simulator daemon.
type DaemonConfig struct {
	AutoStart  bool   `mapstructure:"auto_start"`
	BinaryPath string `mapstructure:"binary_path"` // Path to fcsimd (auto-discovered if empty)
	SocketPath string `mapstructure:"socket_path"`
	PIDPath    string `mapstructure:"pid_path"`
	DBPath     string `mapstructure:"db_path"`
	SeedDir    string `mapstructure:"seed_dir"` // .opl files imported as flights
}

// CatalogueConfig points at extra object definitions.
type CatalogueConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the retrieved-log cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	MaxAge  time.Duration `mapstructure:"max_age"`
}

// HistoryConfig configures operation history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Link      LinkConfig      `mapstructure:"link"`
	Export    ExportConfig    `mapstructure:"export"`
	Sim       SimConfig       `mapstructure:"sim"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Catalogue CatalogueConfig `mapstructure:"catalogue"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("link.mode", DefaultLinkMode)
	v.SetDefault("link.request_timeout", DefaultRequestTimeout)
	v.SetDefault("link.max_retries", DefaultMaxRetries)
	v.SetDefault("link.call_timeout", time.Duration(0))

	v.SetDefault("export.format", DefaultExportFormat)
	v.SetDefault("export.adjust_timestamps", false)
	v.SetDefault("export.directory", ".")

	v.SetDefault("sim.flights", DefaultSimFlights)
	v.SetDefault("sim.entries_per_flight", DefaultSimEntries)
	v.SetDefault("sim.seed", 1)
	v.SetDefault("sim.latency", time.Duration(0))
	v.SetDefault("sim.drop_every", 0)
	v.SetDefault("sim.duplicate_every", 0)

	v.SetDefault("daemon.auto_start", true)
	v.SetDefault("daemon.socket_path", "") // Empty means use default XDG path
	v.SetDefault("daemon.pid_path", "")
	v.SetDefault("daemon.db_path", "")
	v.SetDefault("daemon.seed_dir", "")

	v.SetDefault("catalogue.path", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.max_age", DefaultCacheMaxAge)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Prepare sets up v to read the config file at path, or the default
// locations when path is empty, and FLIGHTLOG_ environment variables.
func Prepare(v *viper.Viper, path string) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - the path argument, when not empty
//   - $XDG_CONFIG_HOME/flightlog/config.yaml
//   - $HOME/.config/flightlog/config.yaml
//
// Environment variables are prefixed with FLIGHTLOG_ (e.g.
// FLIGHTLOG_LINK_MODE).
func Load(path string) (*Config, error) {
	v := viper.New()
	Prepare(v, path)
	return Read(v)
}

// Read reads the config file v was prepared for, if any, and decodes it.
func Read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}
	return Decode(v)
}

// Decode unmarshals v into a validated Config with paths expanded.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{
		&cfg.Export.Directory, &cfg.Daemon.BinaryPath, &cfg.Daemon.SocketPath, &cfg.Daemon.PIDPath,
		&cfg.Daemon.DBPath, &cfg.Daemon.SeedDir, &cfg.Catalogue.Path, &cfg.Cache.Path,
		&cfg.History.Path, &cfg.Logging.Path,
	} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Link.Mode {
	case LinkDaemon, LinkSim:
	default:
		errs = append(errs, fmt.Errorf("link.mode %q: want %s or %s", c.Link.Mode, LinkDaemon, LinkSim))
	}
	if c.Link.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("link.request_timeout must be positive, got %s", c.Link.RequestTimeout))
	}
	if c.Link.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("link.max_retries must not be negative, got %d", c.Link.MaxRetries))
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, fmt.Errorf("export.format: %w", err))
	}
	if c.Sim.Flights < 0 || c.Sim.EntriesPerFlight < 0 || c.Sim.EntriesPerFlight > 1<<16-1 {
		errs = append(errs, fmt.Errorf("sim: %d flights of %d entries is out of range", c.Sim.Flights, c.Sim.EntriesPerFlight))
	}
	if c.Logging.Rotation.MaxSize != "" {
		if _, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize); err != nil {
			errs = append(errs, fmt.Errorf("logging.rotation.max_size: %w", err))
		}
	}
	return errors.Join(errs...)
}

// LoggingSetup converts the logging section for logging.Init.
func (c *Config) LoggingSetup() logging.Config {
	lc := logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Components: c.Logging.Components,
		Rotation: logging.RotationConfig{
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Daily:      c.Logging.Rotation.Daily,
		},
	}
	if n, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize); err == nil {
		lc.Rotation.MaxSize = int64(n)
	}
	return lc
}

// SocketPath returns the configured or default daemon socket.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return DefaultSocketPath()
}

// PIDPath returns the configured or default daemon PID file.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	return DefaultPIDPath()
}

// DBPath returns the configured or default device store directory.
func (c *Config) DBPath() string {
	if c.Daemon.DBPath != "" {
		return c.Daemon.DBPath
	}
	return DefaultDBPath()
}

// CachePath returns the configured or default cache directory.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(CacheDir(), "logs")
}

// HistoryPath returns the configured or default history directory.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(StateDir(), "history")
}

// ConfigDir returns $XDG_CONFIG_HOME/flightlog, falling back to
// ~/.config/flightlog.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

// DefaultConfigPath returns the path config init writes to.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a commented default config file to path, or to
// DefaultConfigPath when path is empty. An existing file is left alone and
// reported with written false.
func WriteDefault(path string) (written bool, err error) {
	if path == "" {
		if path, err = DefaultConfigPath(); err != nil {
			return false, err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultTemplate()), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

func defaultTemplate() string {
	return fmt.Sprintf(`# flightlog configuration

# How the CLI reaches a flight controller
link:
  # daemon: the fcsimd simulator over its Unix socket
  # sim: an in-process simulated device
  mode: %s
  # Deadline of one request/response round trip
  request_timeout: %s
  # Re-sends of an unanswered request before retrieval fails
  max_retries: %d
  # Per-call bound inside the transport (0 disables)
  call_timeout: 0s

# Export defaults
export:
  # opl, csv or xml
  format: %s
  # Stamp entries with wall-clock time anchored at the first entry
  adjust_timestamps: false
  directory: .

# Simulated device
sim:
  flights: %d
  entries_per_flight: %d
  seed: 1
  # Link impairments
  latency: 0s
  drop_every: 0
  duplicate_every: 0

# Simulator daemon
daemon:
  auto_start: true
  binary_path: ""
  # Empty paths use $XDG_DATA_HOME/flightlog
  socket_path: ""
  pid_path: ""
  db_path: ""
  # Directory of .opl files imported as flights and watched for new ones
  seed_dir: ""

# Extra object definitions (YAML), merged into the built-in catalogue
catalogue:
  path: ""

# Last retrieved log, reused by entries/flights/export
cache:
  enabled: true
  path: ""
  max_age: %s

# Operation history
history:
  enabled: true
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/flightlog/flightlog.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    retrieval: info
    link: warn
    device: info
    seeder: info
    daemon: info
    tui: info
`, DefaultLinkMode, DefaultRequestTimeout, DefaultMaxRetries, DefaultExportFormat,
		DefaultSimFlights, DefaultSimEntries, DefaultCacheMaxAge, DefaultRetentionDays)
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/flightlog/ for the device store, socket and
// pid files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/flightlog/ for logs and history.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/flightlog/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultSocketPath returns the default Unix socket path.
func DefaultSocketPath() string {
	return filepath.Join(DataDir(), "fcsimd.sock")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "fcsimd.pid")
}

// DefaultDBPath returns the default device store path.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "device.db")
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// DefaultBinaryPath returns the first existing name binary in the standard
// Go install locations (GOBIN, GOPATH/bin, ~/go/bin), or "".
func DefaultBinaryPath(name string) string {
	var dirs []string
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		dirs = append(dirs, gobin)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		dirs = append(dirs, filepath.Join(gopath, "bin"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "go", "bin"))
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
