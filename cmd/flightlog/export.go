package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/flightlog/pkg/flightlog/cache"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/export"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the retrieved log as OPL, CSV or XML",
	Long: `Export the last retrieved log to a file.

The format is taken from --format, then the file extension, then
export.format. With --adjust-timestamps every entry is rebased so that the
first one is stamped with --anchor (default: now).

The log comes from the cache filled by 'flightlog retrieve', or from an OPL
file given with --from.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportFormat string
	exportAnchor string
	exportFrom   string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "export format: opl, csv or xml")
	exportCmd.Flags().Bool("adjust-timestamps", false, "rebase entry times onto wall-clock time")
	exportCmd.Flags().StringVar(&exportAnchor, "anchor", "", "wall-clock time of the first entry (RFC 3339)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "read entries from this OPL file instead of the cache")
	_ = viper.BindPFlag("export.adjust_timestamps", exportCmd.Flags().Lookup("adjust-timestamps"))
	rootCmd.AddCommand(exportCmd)
}

// exportConfig resolves the destination, format and timestamp options.
func exportConfig(cfg *config.Config, path string) (export.Config, error) {
	ec := export.Config{AdjustTimestamps: cfg.Export.AdjustTimestamps}

	path, err := config.ExpandPath(path)
	if err != nil {
		return ec, err
	}
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." && cfg.Export.Directory != "" {
		path = filepath.Join(cfg.Export.Directory, path)
	}
	ec.Path = path

	switch {
	case exportFormat != "":
		ec.Format, err = export.ParseFormat(exportFormat)
	case filepath.Ext(path) != "":
		ec.Format, err = export.FormatFromPath(path)
	default:
		ec.Format, err = export.ParseFormat(cfg.Export.Format)
		ec.Path += "." + ec.Format.String()
	}
	if err != nil {
		return ec, err
	}

	if exportAnchor != "" {
		ec.Anchor, err = time.Parse(time.RFC3339, exportAnchor)
		if err != nil {
			return ec, fmt.Errorf("invalid --anchor %q: %w", exportAnchor, err)
		}
		ec.AdjustTimestamps = true
	}
	return ec, nil
}

// loadEntries returns the log to export and a label for where it came from.
func loadEntries(cfg *config.Config, cat *uavo.Catalogue) ([]*logbook.Entry, string, error) {
	if exportFrom != "" {
		f, err := os.Open(exportFrom)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		entries, err := codec.ReadOPL(f, cat)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", exportFrom, err)
		}
		return entries, "file:" + exportFrom, nil
	}

	source := sourceName(cfg)
	c := openCache(cfg)
	if c == nil {
		return nil, "", errors.New("the cache is disabled; use --from to export an OPL file")
	}
	defer c.Close()

	sess, entries, err := c.Load(source, cat)
	if err != nil {
		if errors.Is(err, cache.ErrStale) {
			return nil, "", fmt.Errorf("%w (run 'flightlog retrieve' first)", err)
		}
		return nil, "", err
	}
	printVerbose("loaded %d cached entries retrieved %s", len(entries), humanize.Time(sess.RetrievedAt))
	return entries, source, nil
}

func runExport(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()

	ec, err := exportConfig(cfg, args[0])
	if err != nil {
		return err
	}
	cat, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}
	entries, source, err := loadEntries(cfg, cat)
	if err != nil {
		return err
	}

	sess := openOffline(cfg, cat, source)
	defer sess.Close()

	n, err := sess.mgr.Restore(entries)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("nothing to export: the log is empty")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			sess.mgr.CancelExportLogs()
		}
	}()

	res, err := sess.mgr.ExportLogs(context.Background(), ec)

	he := history.Entry{
		Timestamp: time.Now(),
		Operation: history.OpExport,
		Source:    source,
		Outcome:   "success",
		Elapsed:   res.Elapsed,
		Path:      res.Path,
		Format:    res.Format,
		Entries:   res.Entries,
		Bytes:     res.Bytes,
	}
	interrupted := errors.Is(err, export.ErrCancelled)
	switch {
	case interrupted:
		he.Outcome = "cancelled"
	case err != nil:
		he.Outcome = "failed"
	}
	if err != nil {
		he.Error = err.Error()
	}
	recordHistory(openHistory(cfg), he)

	if err != nil && !interrupted {
		return err
	}

	status := []output.StatusField{
		{Name: "path", Value: res.Path},
		{Name: "format", Value: res.Format},
		{Name: "entries", Value: humanize.Comma(int64(res.Entries))},
		{Name: "bytes", Value: humanize.Bytes(uint64(res.Bytes))},
	}
	if res.BaseTimeMs != 0 {
		status = append(status, output.StatusField{Name: "base_time", Value: time.UnixMilli(res.BaseTimeMs).UTC().Format(time.RFC3339Nano)})
	}
	result := &output.Result{
		View:        output.ViewStatus,
		Status:      status,
		Source:      source,
		Elapsed:     res.Elapsed,
		Interrupted: interrupted,
	}
	if interrupted {
		result.Warnings = []string{fmt.Sprintf("export cancelled; %s holds the first %d entries", res.Path, res.Entries)}
	}
	return render(result)
}
