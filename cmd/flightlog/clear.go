package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase every log stored on the device",
	Long: `Ask the device to erase its debug log store and drop the cached copy.

The erase request is sent once; the device does not report when the erase
has finished.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

var clearYes bool

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(clearCmd)
}

// confirm asks a yes/no question on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runClear(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()

	if !clearYes && !confirm("Erase every flight log on the device?") {
		printInfo("Aborted.")
		return nil
	}

	cat, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Link.RequestTimeout)
	defer cancel()

	sess, err := openSession(ctx, cfg, cat)
	if err != nil {
		return err
	}
	defer sess.Close()

	start := time.Now()
	if err := sess.mgr.ClearAllLogs(ctx); err != nil {
		return err
	}

	// The manager does not wait for the device. Hold the link open until the
	// request has at least been delivered so that closing does not drop it.
	he := history.Entry{
		Timestamp: time.Now(),
		Operation: history.OpClear,
		Source:    sess.source,
		Outcome:   "success",
	}
	select {
	case resp, ok := <-sess.tr.Events():
		if ok && resp.Err() != nil {
			he.Outcome = "failed"
			he.Error = resp.Err().Error()
		}
	case <-ctx.Done():
		he.Outcome = "unconfirmed"
	}
	he.Elapsed = time.Since(start)

	if c := openCache(cfg); c != nil {
		if err := c.Clear(sess.source); err != nil {
			printVerbose("failed to clear cache: %v", err)
		}
		_ = c.Close()
	}
	recordHistory(openHistory(cfg), he)

	switch he.Outcome {
	case "failed":
		return fmt.Errorf("device rejected the erase: %s", he.Error)
	case "unconfirmed":
		printInfo("Erase requested; the device did not answer within %s.", cfg.Link.RequestTimeout)
	default:
		printInfo("Erase requested.")
	}
	return nil
}
