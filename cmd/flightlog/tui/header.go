package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
)

// renderAppHeader renders the title line with the session target, the
// number of entries held and the link the log is coming from.
func renderAppHeader(target retrieval.Target, entries int, source string) string {
	appName := titleStyle.Render("FLIGHTLOG")

	parts := []string{target.String(), humanize.Comma(int64(entries)) + " entries"}
	if source != "" {
		parts = append(parts, source)
	}
	stats := mutedTextStyle.Render("  " + strings.Join(parts, "  •  "))

	return fmt.Sprintf(" ✈ %s%s", appName, stats)
}

// renderSessionMetrics renders the footer metrics line. Returns an empty
// string if there is nothing to show yet.
func renderSessionMetrics(retries, skipped, duplicates int, elapsed time.Duration) string {
	var parts []string

	if retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", retries))
	}
	if skipped > 0 || duplicates > 0 {
		parts = append(parts, fmt.Sprintf("Skipped: %d  Duplicates: %d", skipped, duplicates))
	}
	if elapsed > 0 {
		parts = append(parts, fmt.Sprintf("Time: %v", elapsed.Round(time.Millisecond)))
	}

	if len(parts) == 0 {
		return ""
	}
	return mutedTextStyle.Render("  " + strings.Join(parts, "  |  "))
}
