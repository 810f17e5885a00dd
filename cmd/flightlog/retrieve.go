package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/cmd/flightlog/tui"
	"github.com/jamesainslie/flightlog/pkg/flightlog/cache"
	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/events"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve the debug log from the device",
	Long: `Retrieve every flight, or one with --flight, from the device's debug log.

Entries are pulled one request at a time. Unanswered requests are retried up
to link.max_retries times. Whatever was retrieved is kept when the session
fails or is cancelled, and is saved to the cache for later export.`,
	Args: cobra.NoArgs,
	RunE: runRetrieve,
}

var retrieveFlight int

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveFlight, "flight", "f", -1, "retrieve only this flight")
	rootCmd.AddCommand(retrieveCmd)
}

func retrieveTarget() (retrieval.Target, error) {
	if retrieveFlight < 0 {
		return retrieval.AllFlights(), nil
	}
	if retrieveFlight > 1<<16-1 {
		return retrieval.Target{}, fmt.Errorf("flight %d out of range", retrieveFlight)
	}
	return retrieval.SingleFlight(uint16(retrieveFlight)), nil
}

func runRetrieve(_ *cobra.Command, _ []string) error {
	target, err := retrieveTarget()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	live := interactive()
	if err := setupLogging(cfg, live); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()

	cat, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := openSession(ctx, cfg, cat)
	if err != nil {
		return err
	}
	defer sess.Close()

	var (
		res         retrieval.Result
		runErr      error
		interrupted bool
	)
	if live {
		res, runErr = tui.Run(tui.Options{Manager: sess.mgr, Target: target, Source: cfg.Link.Mode})
		interrupted = res.Outcome == retrieval.OutcomeCancelled
	} else {
		res, interrupted, runErr = retrievePlain(ctx, sess, target)
	}

	entries := sess.mgr.Entries()
	saveRetrieval(cfg, sess.source, res, entries)
	recordHistory(openHistory(cfg), retrievalHistory(sess.source, res, runErr))

	if runErr != nil && res.Outcome == retrieval.OutcomeNone {
		return runErr
	}
	if live {
		printInfo("%s: %d entries from %d flights (%s)", res.Outcome, res.Entries, len(res.Flights), target)
		return runErr
	}

	result := &output.Result{
		View:        output.ViewFlights,
		Flights:     output.FlightsFrom(entries),
		Source:      sess.source,
		Outcome:     res.Outcome.String(),
		RetrievedAt: res.Finished,
		Elapsed:     res.Finished.Sub(res.Started),
		Interrupted: interrupted,
	}
	if res.Skipped > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d entries could not be decoded and were skipped", res.Skipped))
	}
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		result.Warnings = append(result.Warnings, res.Err.Error())
	}
	if err := render(result); err != nil {
		return err
	}
	if res.Outcome == retrieval.OutcomeFailed {
		return fmt.Errorf("retrieval failed after %d entries: %w", res.Entries, res.Err)
	}
	return nil
}

// retrievePlain runs a session without the live view, printing progress
// per flight to stderr. SIGINT cancels the session and keeps what arrived.
func retrievePlain(ctx context.Context, sess *session, target retrieval.Target) (retrieval.Result, bool, error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	interrupted := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping retrieval...")
			close(interrupted)
			sess.mgr.CancelRetrieval()
		case <-ctx.Done():
		}
	}()

	sub := sess.mgr.Subscribe(events.RetrievalProgress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if sub == nil {
			return
		}
		last := -1
		for ev := range sub.Events {
			p, ok := ev.Payload.(retrieval.Progress)
			if !ok || int(p.Flight) == last {
				continue
			}
			last = int(p.Flight)
			if !getQuiet() {
				fmt.Fprintf(os.Stderr, "Retrieving flight %d...\n", p.Flight)
			}
		}
	}()

	printVerbose("retrieving %s from %s", target, sess.source)
	res, err := sess.mgr.RetrieveLogs(ctx, target)
	if sub != nil {
		sess.mgr.Unsubscribe(sub.ID)
	}
	<-done

	select {
	case <-interrupted:
		return res, true, err
	default:
		return res, false, err
	}
}

// saveRetrieval caches a session's entries. Sessions that produced nothing
// leave the previous cache in place.
func saveRetrieval(cfg *config.Config, source string, res retrieval.Result, entries []*logbook.Entry) {
	if res.Entries == 0 {
		return
	}
	c := openCache(cfg)
	if c == nil {
		return
	}
	defer c.Close()

	flights := make([]uint16, len(res.Flights))
	copy(flights, res.Flights)
	sess := cache.Session{
		Source:      source,
		Target:      res.Target.String(),
		Outcome:     res.Outcome.String(),
		Flights:     flights,
		RetrievedAt: res.Finished,
	}
	if err := c.Save(source, sess, entries); err != nil {
		logging.Get("cli").Warn("failed to cache retrieved log", "source", source, "error", err)
		printVerbose("failed to cache retrieved log: %v", err)
		return
	}
	printVerbose("cached %d entries for %s", len(entries), source)
}

func retrievalHistory(source string, res retrieval.Result, err error) history.Entry {
	e := history.Entry{
		Timestamp: time.Now(),
		Operation: history.OpRetrieve,
		Source:    source,
		Outcome:   res.Outcome.String(),
		Target:    res.Target.String(),
		Flights:   append([]uint16(nil), res.Flights...),
		Entries:   res.Entries,
	}
	if !res.Started.IsZero() {
		e.Elapsed = res.Finished.Sub(res.Started)
	}
	if err == nil {
		err = res.Err
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
