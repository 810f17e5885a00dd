// Package main provides flightlog, a CLI that retrieves the debug flight log
// from a flight controller and exports it as OPL, CSV or XML.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
