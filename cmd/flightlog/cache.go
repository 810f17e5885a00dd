package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/flightlog/cache"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the retrieved-log cache",
	Long: `Commands for managing the cache of retrieved logs.

Each link source keeps the log of its last retrieval so that entries,
flights and export can work without talking to the device again.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached logs",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the cached log of the current source",
	Long:  `Drop the cached log of the current link source, or every cached log with --all.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.CachePath())
		return nil
	},
}

var cacheClearAll bool

func init() {
	cacheClearCmd.Flags().BoolVarP(&cacheClearAll, "all", "a", false, "drop every cached log")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCacheStrict opens the cache for the cache commands, which fail rather
// than skip when it is unavailable.
func openCacheStrict() (*cache.Cache, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	path := cfg.CachePath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, path, nil
	}
	c, err := cache.Open(path, cfg.Cache.MaxAge)
	if err != nil {
		return nil, path, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, path, nil
}

func runCacheList(_ *cobra.Command, _ []string) error {
	c, path, err := openCacheStrict()
	if err != nil {
		return err
	}
	if c == nil {
		printInfo("Cache is empty (%s).", path)
		return nil
	}
	defer c.Close()

	sessions, err := c.Sources()
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}
	if len(sessions) == 0 {
		printInfo("Cache is empty (%s).", path)
		return nil
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Source < sessions[j].Source })

	var fields []output.StatusField
	for _, s := range sessions {
		value := fmt.Sprintf("%s, %s entries, %d flights, %s, %s",
			s.Outcome, humanize.Comma(int64(s.Entries)), len(s.Flights),
			humanize.IBytes(uint64(s.Bytes)), humanize.Time(s.RetrievedAt))
		if v, err := c.Info(s.Source); err == nil && !v.Valid {
			value += " (" + v.Reason + ")"
		}
		fields = append(fields, output.StatusField{Name: s.Source, Value: value})
	}
	return render(&output.Result{View: output.ViewStatus, Status: fields})
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	c, _, err := openCacheStrict()
	if err != nil {
		return err
	}
	if c == nil {
		printInfo("Cache is already empty.")
		return nil
	}
	defer c.Close()

	if cacheClearAll {
		if err := c.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		printInfo("Cache cleared.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source := sourceName(cfg)
	if err := c.Clear(source); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	printInfo("Cleared cached log for %s.", source)
	return nil
}
