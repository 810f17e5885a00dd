package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// maxDataWidth truncates long entry data in the pretty table.
const maxDataWidth = 80

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

// formatHeader builds the header box with source and retrieval metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	lines = append(lines, LabelStyle.Render("Source:")+" "+ValueStyle.Render(r.Source))

	var info []string
	if r.Outcome != "" {
		info = append(info, LabelStyle.Render("Outcome:")+" "+outcomeStyle(r.Outcome).Render(r.Outcome))
	}
	if !r.RetrievedAt.IsZero() {
		when := humanize.Time(r.RetrievedAt)
		if r.Cached {
			when += " (cached)"
		}
		info = append(info, LabelStyle.Render("Retrieved:")+" "+MutedStyle.Render(when))
	}
	if r.Elapsed > 0 {
		info = append(info, LabelStyle.Render("Took:")+" "+ValueStyle.Render(formatDuration(r.Elapsed)))
	}
	if len(info) > 0 {
		lines = append(lines, strings.Join(info, "  "))
	}

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Interrupted by user"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatTable renders the current view with padded columns.
func (f *PrettyFormatter) formatTable(r *Result) string {
	header, rows := r.Table()
	if len(rows) == 0 {
		return MutedStyle.Render("  Nothing to show") + "\n"
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > maxDataWidth {
				row[i] = cell[:maxDataWidth-3] + "..."
			}
		}
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = TableHeaderStyle.Render(padRight(h, widths[i]))
	}

	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...)))
	sb.WriteString("\n")

	for _, row := range rows {
		sb.WriteString("  ")
		for i, cell := range row {
			sb.WriteString(cellStyle(r.View, i, cell).Render(padRight(cell, widths[i])))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatFooter builds the footer box with summary information.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	parts = append(parts, LabelStyle.Render("Rows:")+" "+ValueStyle.Render(fmt.Sprintf("%d", r.Len())))
	if n := len(r.Flights); n > 0 {
		parts = append(parts, LabelStyle.Render("Flights:")+" "+ValueStyle.Render(fmt.Sprintf("%d", n)))
	}
	if total := r.TotalBytes(); total > 0 {
		parts = append(parts, LabelStyle.Render("Total:")+" "+SizeStyle.Render(humanize.IBytes(uint64(total))))
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// formatDurationString formats a duration for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
