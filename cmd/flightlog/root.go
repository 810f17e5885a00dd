package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "flightlog",
		Short: "Retrieve and export flight controller debug logs",
		Long: `Flightlog pulls the debug log a flight controller records in flash,
flight by flight, and writes it out as OPL, CSV or XML.

The device is reached through the fcsimd daemon (started on demand) or an
in-process simulator with --link sim. Retrieved logs are cached so that
listing and exporting do not have to go back to the device.

Examples:
  flightlog retrieve                  # Retrieve every flight with a live view
  flightlog retrieve --flight 2 -n    # Retrieve one flight, text output
  flightlog export flight.csv         # Export the cached log
  flightlog entries -o json           # Print cached entries as JSON
  flightlog settings set GPSPosition=5s
  flightlog history                   # View operation history`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/flightlog/config.yaml)")
	rootCmd.PersistentFlags().String("link", "", "how to reach the device: daemon or sim")
	rootCmd.PersistentFlags().BoolP("no-interactive", "n", false, "disable the live view, use text output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format ("+outputFormats()+")")
	rootCmd.PersistentFlags().String("template", "", "Go template for -o template")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "do not read or write the retrieved-log cache")

	// Bind flags to viper
	_ = viper.BindPFlag("link.mode", rootCmd.PersistentFlags().Lookup("link"))
	_ = viper.BindPFlag("no_interactive", rootCmd.PersistentFlags().Lookup("no-interactive"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
}

// initConfig points the global viper at the config file and environment.
func initConfig() {
	config.Prepare(viper.GetViper(), cfgFile)
}

// loadConfig reads the config file, if any, with flags and environment
// applied on top.
func loadConfig() (*config.Config, error) {
	return config.Read(viper.GetViper())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
