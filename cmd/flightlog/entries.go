package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/flightlog/cache"
	"github.com/jamesainslie/flightlog/pkg/flightlog/export"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List the entries of the retrieved log",
	Long: `List the entries of the last retrieved log, from the cache.

Use -o to pick a format, e.g. -o text for one line per entry in the
device's own notation, or -o jsonl for streaming tools.`,
	Args: cobra.NoArgs,
	RunE: runEntries,
}

var flightsCmd = &cobra.Command{
	Use:   "flights",
	Short: "Summarise the retrieved log per flight",
	Args:  cobra.NoArgs,
	RunE:  runFlights,
}

var (
	entriesFlight int
	entriesLimit  int
	entriesAdjust bool
)

func init() {
	entriesCmd.Flags().IntVarP(&entriesFlight, "flight", "f", -1, "only entries of this flight")
	entriesCmd.Flags().IntVarP(&entriesLimit, "limit", "l", 0, "maximum number of entries to show (0 = all)")
	entriesCmd.Flags().BoolVar(&entriesAdjust, "adjust-timestamps", false, "show wall-clock times anchored at the retrieval time")
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(flightsCmd)
}

// cachedLog loads the cached log of the configured device.
func cachedLog() (*cache.Session, []*logbook.Entry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := setupLogging(cfg, false); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	cat, err := loadCatalogue(cfg)
	if err != nil {
		return nil, nil, err
	}
	c := openCache(cfg)
	if c == nil {
		return nil, nil, fmt.Errorf("the cache is disabled")
	}
	defer c.Close()

	sess, entries, err := c.Load(sourceName(cfg), cat)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (run 'flightlog retrieve' first)", err)
	}
	return sess, entries, nil
}

func selectEntries(entries []*logbook.Entry, flight, limit int) []*logbook.Entry {
	var out []*logbook.Entry
	for _, e := range entries {
		if flight >= 0 && int(e.Flight) != flight {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func runEntries(_ *cobra.Command, _ []string) error {
	start := time.Now()
	sess, entries, err := cachedLog()
	defer logging.Close()
	if err != nil {
		return err
	}

	var base int64
	if entriesAdjust {
		base = export.BaseTime(entries, export.Config{AdjustTimestamps: true, Anchor: sess.RetrievedAt}, time.Now())
	}
	shown := selectEntries(entries, entriesFlight, entriesLimit)

	result := &output.Result{
		View:        output.ViewEntries,
		Entries:     output.EntriesFrom(shown, base),
		Source:      sess.Source,
		Outcome:     sess.Outcome,
		RetrievedAt: sess.RetrievedAt,
		Cached:      true,
		Elapsed:     time.Since(start),
	}
	if sess.Outcome != "success" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("retrieval ended %s; the log may be incomplete", sess.Outcome))
	}
	return render(result)
}

func runFlights(_ *cobra.Command, _ []string) error {
	start := time.Now()
	sess, entries, err := cachedLog()
	defer logging.Close()
	if err != nil {
		return err
	}

	return render(&output.Result{
		View:        output.ViewFlights,
		Flights:     output.FlightsFrom(entries),
		Source:      sess.Source,
		Outcome:     sess.Outcome,
		RetrievedAt: sess.RetrievedAt,
		Cached:      true,
		Elapsed:     time.Since(start),
	})
}
