package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the device's log store status",
	Long: `Show the state of the device's log store: flights recorded, slots used
and free, and request counters. The cached log, if any, is listed too.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	start := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()

	cat, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := openSession(ctx, cfg, cat)
	if err != nil {
		return err
	}
	defer sess.Close()

	fields, err := sess.status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device status: %w", err)
	}

	if c := openCache(cfg); c != nil {
		if info, err := c.Info(sess.source); err == nil && info.Session != nil {
			cached := fmt.Sprintf("%s entries, retrieved %s", humanize.Comma(int64(info.Session.Entries)), humanize.Time(info.Session.RetrievedAt))
			if !info.Valid {
				cached += " (" + info.Reason + ")"
			}
			fields = append(fields, output.StatusField{Name: "cached", Value: cached})
		}
		_ = c.Close()
	}

	return render(&output.Result{
		View:    output.ViewStatus,
		Status:  fields,
		Source:  sess.source,
		Elapsed: time.Since(start),
	})
}
