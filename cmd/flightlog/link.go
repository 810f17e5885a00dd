package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flightlog/pkg/client"
	"github.com/jamesainslie/flightlog/pkg/flightlog/output"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage the fcsimd flight controller daemon",
	Long: `Manage fcsimd, the simulated flight controller that the daemon link
mode talks to. It keeps its flight logs on disk between invocations.`,
}

var linkStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start fcsimd",
	Args:  cobra.NoArgs,
	RunE:  runLinkStart,
}

var linkStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop fcsimd",
	Args:  cobra.NoArgs,
	RunE:  runLinkStop,
}

var linkRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart fcsimd",
	Args:  cobra.NoArgs,
	RunE:  runLinkRestart,
}

var linkStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fcsimd status",
	Args:  cobra.NoArgs,
	RunE:  runLinkStatus,
}

func init() {
	rootCmd.AddCommand(linkCmd)
	linkCmd.AddCommand(linkStartCmd)
	linkCmd.AddCommand(linkStopCmd)
	linkCmd.AddCommand(linkRestartCmd)
	linkCmd.AddCommand(linkStatusCmd)
}

func linkPaths() (client.DaemonPaths, error) {
	cfg, err := loadConfig()
	if err != nil {
		return client.DaemonPaths{}, err
	}
	paths := daemonPaths(cfg)
	printVerbose("socket: %s", paths.Socket)
	printVerbose("pid file: %s", paths.PID)
	return paths, nil
}

func runLinkStart(_ *cobra.Command, _ []string) error {
	paths, err := linkPaths()
	if err != nil {
		return err
	}
	if client.IsDaemonRunning(paths) {
		printInfo("fcsimd is already running")
		return nil
	}
	if err := client.StartDaemon(paths); err != nil {
		return err
	}
	printInfo("fcsimd started")
	return nil
}

func runLinkStop(_ *cobra.Command, _ []string) error {
	paths, err := linkPaths()
	if err != nil {
		return err
	}
	if !client.IsDaemonRunning(paths) {
		return errors.New("fcsimd is not running")
	}
	if err := client.StopDaemon(paths); err != nil {
		return err
	}
	printInfo("fcsimd stopped")
	return nil
}

func runLinkRestart(_ *cobra.Command, _ []string) error {
	paths, err := linkPaths()
	if err != nil {
		return err
	}
	if err := client.RestartDaemon(paths); err != nil {
		return err
	}
	printInfo("fcsimd restarted")
	return nil
}

func runLinkStatus(_ *cobra.Command, _ []string) error {
	paths, err := linkPaths()
	if err != nil {
		return err
	}

	result := &output.Result{View: output.ViewStatus, Source: "daemon:" + paths.Socket}
	if !client.IsDaemonRunning(paths) {
		result.Status = []output.StatusField{{Name: "running", Value: "false"}}
		return render(result)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	c, err := client.ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		result.Status = []output.StatusField{{Name: "running", Value: "true"}}
		result.Warnings = []string{"fcsimd is running but not responding"}
		return render(result)
	}
	defer c.Close()

	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get fcsimd status: %w", err)
	}
	result.Status = append([]output.StatusField{{Name: "running", Value: "true"}}, daemonStatus(st)...)
	result.Elapsed = time.Since(start)
	return render(result)
}
