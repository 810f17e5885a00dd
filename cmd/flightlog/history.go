package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View earlier retrievals, exports, clears and settings changes.

Every operation that reaches the device or writes an export is recorded
with its outcome, entry count and elapsed time.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one operation",
	Long:  `Show a single operation by its ID or a unique prefix of it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old history entries",
	Long:  `Remove history entries older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyOp    string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyCmd.Flags().StringVar(&historyOp, "op", "", "only show one operation (retrieve, export, clear, settings)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func parseOperation(s string) (history.OperationType, error) {
	switch op := history.OperationType(s); op {
	case "", history.OpRetrieve, history.OpExport, history.OpClear, history.OpSettings:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q (valid: retrieve, export, clear, settings)", s)
}

// getHistory opens the configured history store even when recording is
// disabled, so that old entries stay readable.
func getHistory() (*history.History, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return h, cfg, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	op, err := parseOperation(historyOp)
	if err != nil {
		return err
	}
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entries, err := h.List(op, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'flightlog retrieve' to read logs from the device.")
		return nil
	}

	ptrs := make([]*history.Entry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	return render(&output.Result{View: output.ViewHistory, History: output.HistoryFrom(ptrs)})
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	e, err := h.Get(args[0])
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("no history entry %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	return render(&output.Result{
		View:   output.ViewStatus,
		Source: e.Source,
		Status: historyFields(e),
	})
}

func historyFields(e *history.Entry) []output.StatusField {
	fields := []output.StatusField{
		{Name: "id", Value: e.ID},
		{Name: "timestamp", Value: e.Timestamp.Format("2006-01-02 15:04:05 MST")},
		{Name: "operation", Value: string(e.Operation)},
		{Name: "source", Value: e.Source},
		{Name: "outcome", Value: e.Outcome},
		{Name: "elapsed", Value: formatDuration(e.Elapsed)},
		{Name: "entries", Value: fmt.Sprint(e.Entries)},
	}
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, output.StatusField{Name: name, Value: value})
		}
	}
	add("target", e.Target)
	if len(e.Flights) > 0 {
		add("flights", fmt.Sprint(e.Flights))
	}
	add("path", e.Path)
	add("format", e.Format)
	if e.Bytes > 0 {
		add("bytes", fmt.Sprint(e.Bytes))
	}
	add("error", e.Error)
	return fields
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	h, cfg, err := getHistory()
	if err != nil {
		return err
	}

	days := cfg.History.RetentionDays
	if days <= 0 {
		days = config.DefaultRetentionDays
	}
	printVerbose("removing entries older than %d days from %s", days, h.Dir())

	n, err := h.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed %d history entries older than %d days.", n, days)
	return nil
}
