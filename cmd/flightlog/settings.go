package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change how often objects are logged",
	Long: `Every loggable object has a logging cadence on the device: DISABLED,
ON_CHANGE, or a period from EVERY_10MS to EVERY_1M.

Without a subcommand the current cadences are read and listed.`,
	Args: cobra.NoArgs,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logging cadences",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set NAME=CADENCE...",
	Short: "Change logging cadences",
	Long: `Stage one or more cadence changes and write them to the device.

Examples:
  flightlog settings set GPSPosition=EVERY_1S
  flightlog settings set AttitudeState=every-100ms BaroAltitude=disabled
  flightlog settings set GPSPosition=on_change --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSettingsSet,
}

var settingsDryRun bool

func init() {
	settingsSetCmd.Flags().BoolVarP(&settingsDryRun, "dry-run", "d", false, "show the staged changes without writing them")
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// settingChange is one NAME=CADENCE argument.
type settingChange struct {
	name    string
	cadence settings.Cadence
}

func parseSettingChanges(args []string) ([]settingChange, error) {
	out := make([]settingChange, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid setting %q: want NAME=CADENCE", arg)
		}
		c, err := settings.ParseCadence(value)
		if err != nil {
			return nil, err
		}
		out = append(out, settingChange{name: name, cadence: c})
	}
	return out, nil
}

// withSession opens a device session for a settings command.
func withSession(fn func(ctx context.Context, s *session) error) error {
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

	ctx := context.Background()
	sess, err := openSession(ctx, cfg, cat)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(ctx, sess)
}

func runSettingsList(_ *cobra.Command, _ []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		start := time.Now()
		current, err := s.mgr.LoadSettings(ctx)
		result := &output.Result{
			View:     output.ViewSettings,
			Settings: output.SettingsFrom(current, nil),
			Source:   s.source,
			Elapsed:  time.Since(start),
		}
		if err != nil {
			result.Warnings = append(result.Warnings, "some settings could not be read: "+err.Error())
		}
		return render(result)
	})
}

func runSettingsSet(_ *cobra.Command, args []string) error {
	changes, err := parseSettingChanges(args)
	if err != nil {
		return err
	}

	return withSession(func(ctx context.Context, s *session) error {
		start := time.Now()
		if _, err := s.mgr.LoadSettings(ctx); err != nil {
			return fmt.Errorf("failed to read current settings: %w", err)
		}
		for _, c := range changes {
			if err := s.mgr.ApplySetting(c.name, c.cadence); err != nil {
				return err
			}
		}

		staged := s.mgr.StagedSettings()
		result := &output.Result{
			View:   output.ViewSettings,
			Source: s.source,
		}

		if settingsDryRun || len(staged) == 0 {
			result.Settings = output.SettingsFrom(s.mgr.Settings(), staged)
			if len(staged) == 0 {
				result.Warnings = []string{"nothing to change"}
			}
			s.mgr.DiscardSettings()
			result.Elapsed = time.Since(start)
			return render(result)
		}

		commitErr := s.mgr.CommitSettings(ctx)
		remaining := s.mgr.StagedSettings()
		result.Settings = output.SettingsFrom(s.mgr.Settings(), remaining)
		result.Elapsed = time.Since(start)

		he := history.Entry{
			Timestamp: time.Now(),
			Operation: history.OpSettings,
			Source:    s.source,
			Outcome:   "success",
			Elapsed:   result.Elapsed,
			Entries:   len(staged) - len(remaining),
		}

		var pf *settings.PartialFailure
		if errors.As(commitErr, &pf) {
			he.Outcome = "partial"
			he.Error = pf.Error()
			for _, e := range pf.Errs {
				result.Warnings = append(result.Warnings, e.Error())
			}
		} else if commitErr != nil {
			he.Outcome = "failed"
			he.Error = commitErr.Error()
		}
		recordHistory(openHistory(s.cfg), he)

		if err := render(result); err != nil {
			return err
		}
		return commitErr
	})
}
