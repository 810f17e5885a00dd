// Package logging is the shared logging layer of the flightlog CLI and the
// fcsimd daemon. Every component asks for a named logger; output goes to a
// rotating file and, optionally, to stderr.
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	log := logging.Get("retrieval")
//	log.Info("retrieval started", "target", "all")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

// Levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "unknown"
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned for unrecognized level names.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name. "warning" is accepted for warn.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return LevelWarn, nil
	}
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default file log level.
	Level string

	// Path is the log file. Empty means DefaultLogPath.
	Path string

	// Rotation controls log file rotation.
	Rotation RotationConfig

	// Components overrides the level of individual components.
	Components map[string]string

	// ConsoleLevel mirrors messages at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string

	// Interactive is set while a full-screen view owns the terminal. Console
	// output is suppressed and recent messages are kept in a Ring instead.
	Interactive bool
}

// Record is one logged message as delivered to subscribers.
type Record struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
}

// Logger writes key/value structured messages for one component.
type Logger struct {
	component string
	file      *log.Logger
	console   *log.Logger
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.emit(LevelDebug, msg, kv) }

// Info logs at info level.
func (l *Logger) Info(msg string, kv ...interface{}) { l.emit(LevelInfo, msg, kv) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.emit(LevelWarn, msg, kv) }

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...interface{}) { l.emit(LevelError, msg, kv) }

// With returns a logger that adds kv to every message.
func (l *Logger) With(kv ...interface{}) *Logger {
	out := &Logger{component: l.component, file: l.file.With(kv...)}
	if l.console != nil {
		out.console = l.console.With(kv...)
	}
	return out
}

func (l *Logger) emit(level Level, msg string, kv []interface{}) {
	write(l.file, level, msg, kv)
	if l.console != nil {
		write(l.console, level, msg, kv)
	}
	global.publish(Record{Time: time.Now(), Level: level, Component: l.component, Message: msg})
}

func write(dst *log.Logger, level Level, msg string, kv []interface{}) {
	switch level {
	case LevelDebug:
		dst.Debug(msg, kv...)
	case LevelInfo:
		dst.Info(msg, kv...)
	case LevelWarn:
		dst.Warn(msg, kv...)
	case LevelError:
		dst.Error(msg, kv...)
	}
}

type registry struct {
	mu          sync.RWMutex
	ready       bool
	out         *RotatingWriter
	level       Level
	overrides   map[string]Level
	console     bool
	consoleLvl  Level
	interactive bool
	ring        *Ring
	loggers     map[string]*Logger
	subscribers map[chan Record]struct{}
}

var global = newRegistry()

func newRegistry() *registry {
	return &registry{
		overrides:   make(map[string]Level),
		loggers:     make(map[string]*Logger),
		subscribers: make(map[chan Record]struct{}),
	}
}

// Init opens the log file and reconfigures every logger handed out so far.
// Loggers obtained before Init discard their output.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	overrides := make(map[string]Level, len(cfg.Components))
	for comp, s := range cfg.Components {
		l, err := ParseLevel(s)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		overrides[comp] = l
	}
	var consoleLvl Level
	console := cfg.ConsoleLevel != "" && !cfg.Interactive
	if console {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	out, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.out != nil {
		_ = global.out.Close()
	}
	global.out = out
	global.level = level
	global.overrides = overrides
	global.console = console
	global.consoleLvl = consoleLvl
	global.interactive = cfg.Interactive
	global.ring = nil
	if cfg.Interactive {
		global.ring = NewRing(DefaultRingSize)
	}
	global.ready = true

	for name := range global.loggers {
		global.loggers[name] = global.build(name)
	}
	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	l, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return l
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if l, ok := global.loggers[component]; ok {
		return l
	}
	l = global.build(component)
	global.loggers[component] = l
	return l
}

// build must be called with r.mu held.
func (r *registry) build(component string) *Logger {
	level := r.level
	if l, ok := r.overrides[component]; ok {
		level = l
	}

	if !r.ready {
		return &Logger{
			component: component,
			file:      log.NewWithOptions(io.Discard, log.Options{Level: level.charm(), Prefix: component}),
		}
	}

	l := &Logger{
		component: component,
		file: log.NewWithOptions(r.out, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}
	if r.console {
		l.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           r.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          component,
		})
	}
	return l
}

// Close flushes the log file, closes subscriber channels and returns every
// logger to discard mode.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.ready {
		return nil
	}
	for ch := range global.subscribers {
		close(ch)
	}
	global.subscribers = make(map[chan Record]struct{})

	var err error
	if global.out != nil {
		err = global.out.Close()
		global.out = nil
	}
	global.ready = false
	global.ring = nil
	global.loggers = make(map[string]*Logger)
	global.overrides = make(map[string]Level)
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Subscribe returns a channel receiving every record logged from now on.
// Records are dropped for subscribers that fall behind.
func Subscribe() <-chan Record {
	global.mu.Lock()
	defer global.mu.Unlock()
	ch := make(chan Record, 64)
	global.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch. The channel is left open.
func Unsubscribe(ch <-chan Record) {
	global.mu.Lock()
	defer global.mu.Unlock()
	for sub := range global.subscribers {
		if sub == ch {
			delete(global.subscribers, sub)
			return
		}
	}
}

// Recent returns the ring of recent records kept in interactive mode, or
// nil outside of it.
func Recent() *Ring {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.ring
}

func (r *registry) publish(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ring != nil {
		r.ring.Push(rec)
	}
	for ch := range r.subscribers {
		select {
		case ch <- rec:
		default:
		}
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/flightlog/flightlog.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "flightlog", "flightlog.log")
}

// DefaultConfig returns info-level file logging at DefaultLogPath.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
