// Package main runs fcsimd, the simulated flight controller daemon. It serves
// the Link gRPC service on a Unix socket from a persistent log store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/daemon"
	"github.com/jamesainslie/flightlog/pkg/daemon/device"
	"github.com/jamesainslie/flightlog/pkg/daemon/seeder"
	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// version is set with -ldflags at build time.
var version = "dev"

var (
	cfgFile    string
	socketFlag string
	pidFlag    string
	dbFlag     string
	seedFlag   string
)

func main() {
	cmd := &cobra.Command{
		Use:           "fcsimd",
		Short:         "Simulated flight controller daemon",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/flightlog/config.yaml)")
	cmd.Flags().StringVar(&socketFlag, "socket", "", "Unix socket path")
	cmd.Flags().StringVar(&pidFlag, "pid", "", "PID file path")
	cmd.Flags().StringVar(&dbFlag, "db", "", "device store directory")
	cmd.Flags().StringVar(&seedFlag, "seed-dir", "", "directory of .opl files to import as flights")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fcsimd: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	override(&cfg.Daemon.SocketPath, socketFlag)
	override(&cfg.Daemon.PIDPath, pidFlag)
	override(&cfg.Daemon.DBPath, dbFlag)
	override(&cfg.Daemon.SeedDir, seedFlag)

	socketPath, pidPath, dbPath := cfg.SocketPath(), cfg.PIDPath(), cfg.DBPath()
	statusPath := daemon.StatusPath(socketPath)

	logCfg := cfg.LoggingSetup()
	logCfg.Path = filepath.Join(config.StateDir(), "fcsimd.log")
	if cfg.Logging.Path != "" {
		logCfg.Path = cfg.Logging.Path
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()
	log := logging.Get("daemon")

	// Any failure before the socket is up is reported through the status
	// file so that a starting client gets the reason.
	fail := func(err error) error {
		log.Error("startup failed", "error", err)
		_ = daemon.WriteStatusError(statusPath, err)
		return err
	}

	if daemon.IsDaemonRunning(pidPath) {
		return fail(daemon.ErrDaemonAlreadyRunning)
	}
	if err := daemon.RecoverFromStaleDaemon(pidPath, socketPath, dbPath); err != nil {
		return fail(fmt.Errorf("recover stale daemon: %w", err))
	}

	cat := uavo.Default()
	if cfg.Catalogue.Path != "" {
		if err := cat.LoadFile(cfg.Catalogue.Path); err != nil {
			return fail(fmt.Errorf("load catalogue: %w", err))
		}
	}

	if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return fail(err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fail(fmt.Errorf("open device store: %w", err))
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if n, err := st.Migrate(ctx, func(p store.MigrationProgress) {
		log.Debug("migrating", "from", p.FromVersion, "to", p.ToVersion, "done", p.EntriesDone, "total", p.EntriesTotal)
	}); err != nil {
		return fail(fmt.Errorf("migrate device store: %w", err))
	} else if n > 0 {
		log.Info("device store migrated", "migrations", n)
	}

	if _, ok := st.LastFlight(); !ok && cfg.Sim.Flights > 0 {
		n, err := device.Seed(st, cat, device.GenerateOptions{
			Flights:          cfg.Sim.Flights,
			EntriesPerFlight: cfg.Sim.EntriesPerFlight,
			Seed:             cfg.Sim.Seed,
		})
		if err != nil {
			return fail(fmt.Errorf("generate flights: %w", err))
		}
		log.Info("generated flights", "flights", n, "entries_per_flight", cfg.Sim.EntriesPerFlight)
	}

	svc := daemon.NewService(device.New(cat, st))

	if dir := cfg.Daemon.SeedDir; dir != "" {
		sd := seeder.New(st)
		defer sd.Close()
		svc.SetSeeder(sd)

		res, err := sd.ImportDir(ctx, dir, nil)
		if err != nil {
			return fail(fmt.Errorf("import %s: %w", dir, err))
		}
		log.Info("imported logs", "dir", res.Dir, "files", res.Files, "flights", res.Flights, "failed", len(res.Failed))

		go func() {
			if err := sd.Watch(ctx, dir); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("seed directory watch stopped", "dir", dir, "error", err)
			}
		}()
	}

	srv, err := daemon.NewServer(daemon.Config{SocketPath: socketPath, DataDir: filepath.Dir(dbPath)}, svc)
	if err != nil {
		return fail(fmt.Errorf("create server: %w", err))
	}
	svc.SetShutdown(cancel)

	if err := daemon.WritePIDFile(pidPath); err != nil {
		return fail(fmt.Errorf("write PID file: %w", err))
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
		_ = daemon.RemoveStatus(statusPath)
	}()

	flights, _ := st.Flights()
	if err := daemon.WriteStatusReady(statusPath, socketPath, len(flights)); err != nil {
		log.Warn("failed to write status file", "error", err)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := srv.Close(); err != nil {
			log.Warn("error during shutdown", "error", err)
		}
	}()

	log.Info("fcsimd listening", "socket", socketPath, "flights", len(flights))
	return srv.Serve()
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}
