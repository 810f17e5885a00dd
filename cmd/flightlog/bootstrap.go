package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/flightlog/pkg/client"
	"github.com/jamesainslie/flightlog/pkg/daemon/device"
	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/cache"
	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/manager"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// setupLogging initialises file logging. Interactive mode keeps messages off
// the terminal so that the live view owns it.
func setupLogging(cfg *config.Config, interactive bool) error {
	lc := cfg.LoggingSetup()
	lc.Interactive = interactive
	if getVerbose() {
		lc.ConsoleLevel = "debug"
	}
	return logging.Init(lc)
}

// loadCatalogue returns the built-in object catalogue plus any configured
// definitions.
func loadCatalogue(cfg *config.Config) (*uavo.Catalogue, error) {
	cat := uavo.Default()
	if cfg.Catalogue.Path != "" {
		if err := cat.LoadFile(cfg.Catalogue.Path); err != nil {
			return nil, fmt.Errorf("load catalogue %s: %w", cfg.Catalogue.Path, err)
		}
	}
	return cat, nil
}

// sourceName identifies the device a log came from. It keys the cache and
// labels history entries.
func sourceName(cfg *config.Config) string {
	if cfg.Link.Mode == config.LinkSim {
		return fmt.Sprintf("sim:%d", cfg.Sim.Seed)
	}
	return "daemon:" + cfg.SocketPath()
}

func daemonPaths(cfg *config.Config) client.DaemonPaths {
	return client.DaemonPaths{
		Binary: cfg.Daemon.BinaryPath,
		Socket: cfg.SocketPath(),
		PID:    cfg.PIDPath(),
	}
}

// session is an open device link and the manager driving it.
type session struct {
	cfg    *config.Config
	cat    *uavo.Catalogue
	mgr    *manager.Manager
	tr     *link.Async
	source string

	// status reports on the device end of the link.
	status func(ctx context.Context) ([]output.StatusField, error)

	closers []func() error
}

// openSession connects to the device selected by link.mode. In daemon mode
// the daemon is started first when daemon.auto_start is set. In sim mode an
// in-memory device is generated from the sim section.
func openSession(ctx context.Context, cfg *config.Config, cat *uavo.Catalogue) (*session, error) {
	s := &session{cfg: cfg, cat: cat, source: sourceName(cfg)}
	lg := logging.Get("cli")

	var dev link.Device
	switch cfg.Link.Mode {
	case config.LinkSim:
		st, err := store.Open("")
		if err != nil {
			return nil, fmt.Errorf("open simulator store: %w", err)
		}
		s.closers = append(s.closers, st.Close)

		if _, err := device.Seed(st, cat, device.GenerateOptions{
			Flights:          cfg.Sim.Flights,
			EntriesPerFlight: cfg.Sim.EntriesPerFlight,
			Seed:             cfg.Sim.Seed,
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("generate flights: %w", err)
		}
		d := device.New(cat, st)
		dev = d
		s.status = func(context.Context) ([]output.StatusField, error) {
			return simStatus(d), nil
		}
		lg.Debug("simulated device ready", "flights", cfg.Sim.Flights, "entries_per_flight", cfg.Sim.EntriesPerFlight)

	default:
		paths := daemonPaths(cfg)
		if cfg.Daemon.AutoStart {
			printVerbose("ensuring daemon is running")
			if err := client.EnsureDaemon(paths); err != nil {
				return nil, fmt.Errorf("start daemon: %w", err)
			}
		}
		c, err := client.ConnectWithContext(ctx, paths.Socket)
		if err != nil {
			if !client.IsDaemonRunning(paths) {
				return nil, errors.New("daemon is not running (start with: flightlog link start)")
			}
			return nil, err
		}
		s.closers = append(s.closers, c.Close)
		dev = c
		s.status = func(ctx context.Context) ([]output.StatusField, error) {
			st, err := c.Status(ctx)
			if err != nil {
				return nil, err
			}
			return daemonStatus(st), nil
		}
		lg.Debug("connected to daemon", "socket", paths.Socket)
	}

	tr := link.NewAsync(dev, link.AsyncOptions{
		CallTimeout:    cfg.Link.CallTimeout,
		Latency:        cfg.Sim.Latency,
		DropEvery:      cfg.Sim.DropEvery,
		DuplicateEvery: cfg.Sim.DuplicateEvery,
	})
	// closers run in reverse, so the transport stops before the device
	s.closers = append(s.closers, tr.Close)
	s.tr = tr

	s.mgr = manager.New(tr, manager.Options{
		Catalogue: cat,
		Retrieval: retrieval.Options{
			RequestTimeout: cfg.Link.RequestTimeout,
			MaxRetries:     cfg.Link.MaxRetries,
		},
	})
	s.closers = append(s.closers, func() error { s.mgr.Close(); return nil })
	return s, nil
}

// offlineDevice answers nothing. It backs a manager that only restores
// cached or imported entries and exports them.
type offlineDevice struct{}

func (offlineDevice) ReadObject(context.Context, uint32, uint16) ([]byte, error) {
	return nil, link.ErrClosed
}

func (offlineDevice) WriteObject(context.Context, uint32, uint16, []byte) error {
	return link.ErrClosed
}

// openOffline returns a session with no device behind it.
func openOffline(cfg *config.Config, cat *uavo.Catalogue, source string) *session {
	tr := link.NewAsync(offlineDevice{}, link.AsyncOptions{})
	s := &session{cfg: cfg, cat: cat, tr: tr, source: source}
	s.mgr = manager.New(tr, manager.Options{Catalogue: cat})
	s.closers = []func() error{tr.Close, func() error { s.mgr.Close(); return nil }}
	return s
}

// Close shuts the manager, transport and device down in that order.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func simStatus(d *device.Device) []output.StatusField {
	st := d.Status()
	reads, writes := d.Counters()
	flights, _ := d.Store().Flights()
	return []output.StatusField{
		{Name: "link", Value: "sim"},
		{Name: "flights", Value: fmt.Sprint(len(flights))},
		{Name: "entries", Value: humanize.Comma(d.Store().CountEntries())},
		{Name: "last_flight", Value: fmt.Sprint(st.Flight)},
		{Name: "used_slots", Value: fmt.Sprint(st.UsedSlots)},
		{Name: "free_slots", Value: fmt.Sprint(st.FreeSlots)},
		{Name: "reads", Value: fmt.Sprint(reads)},
		{Name: "writes", Value: fmt.Sprint(writes)},
	}
}

func daemonStatus(st *client.DaemonStatus) []output.StatusField {
	return []output.StatusField{
		{Name: "link", Value: "daemon"},
		{Name: "uptime", Value: formatDuration(time.Duration(st.UptimeSeconds) * time.Second)},
		{Name: "memory", Value: humanize.IBytes(uint64(st.MemoryBytes))},
		{Name: "flights", Value: fmt.Sprint(st.Flights)},
		{Name: "entries", Value: humanize.Comma(int64(st.Entries))},
		{Name: "last_flight", Value: fmt.Sprint(st.LastFlight)},
		{Name: "used_slots", Value: fmt.Sprint(st.UsedSlots)},
		{Name: "free_slots", Value: fmt.Sprint(st.FreeSlots)},
		{Name: "reads", Value: fmt.Sprint(st.Reads)},
		{Name: "writes", Value: fmt.Sprint(st.Writes)},
		{Name: "seeded_files", Value: fmt.Sprint(st.SeededFiles)},
	}
}

// openCache opens the retrieved-log cache, or returns nil when it is
// disabled. A cache that cannot be opened is reported and skipped.
func openCache(cfg *config.Config) *cache.Cache {
	if !cfg.Cache.Enabled || viper.GetBool("no_cache") {
		return nil
	}
	c, err := cache.Open(cfg.CachePath(), cfg.Cache.MaxAge)
	if err != nil {
		printVerbose("cache unavailable: %v", err)
		logging.Get("cli").Warn("cache unavailable", "path", cfg.CachePath(), "error", err)
		return nil
	}
	return c
}

// openHistory returns the history store, or nil when disabled.
func openHistory(cfg *config.Config) *history.History {
	if !cfg.History.Enabled {
		return nil
	}
	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		printVerbose("history unavailable: %v", err)
		return nil
	}
	return h
}

// recordHistory appends e to h. Failures are logged, never returned.
func recordHistory(h *history.History, e history.Entry) {
	if h == nil {
		return
	}
	if _, err := h.Record(e); err != nil {
		logging.Get("cli").Warn("failed to record history", "operation", e.Operation, "error", err)
	}
}

// outputFormats lists the -o choices for help text.
func outputFormats() string {
	return strings.Join(output.Available(), ", ")
}

// formatter returns the formatter named by -o, or def when it is unset.
func formatter(def string) (output.Formatter, error) {
	name := viper.GetString("output")
	if name == "" {
		name = def
	}
	if name == "template" {
		tmpl := viper.GetString("template")
		if tmpl == "" {
			return nil, errors.New("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}
	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return f, nil
}

// render formats r to stdout.
func render(r *output.Result) error {
	f, err := formatter("pretty")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// interactive reports whether the live view should be used: stdout is a
// terminal, -n was not given and no explicit output format was requested.
func interactive() bool {
	if viper.GetBool("no_interactive") {
		return false
	}
	if out := viper.GetString("output"); out != "" && out != "pretty" {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
