package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// logViewerSize is how many records the viewer keeps.
const logViewerSize = 100

// filterRecordsByLevel returns records at or above minLevel.
func filterRecordsByLevel(records []logging.Record, minLevel logging.Level) []logging.Record {
	result := make([]logging.Record, 0, len(records))
	for _, r := range records {
		if r.Level >= minLevel {
			result = append(result, r)
		}
	}
	return result
}

// clampLogScroll keeps the scroll offset within bounds.
func clampLogScroll(offset, total, visibleRows int) int {
	if total <= visibleRows {
		return 0
	}
	maxOffset := total - visibleRows
	if offset < 0 {
		return 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

// visibleRecords returns the filtered window starting at offset.
func visibleRecords(records []logging.Record, minLevel logging.Level, offset, limit int) []logging.Record {
	filtered := filterRecordsByLevel(records, minLevel)
	if offset >= len(filtered) {
		return nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end]
}

func logLevelStyle(level logging.Level) lipgloss.Style {
	switch level {
	case logging.LevelDebug:
		return logDebugStyle
	case logging.LevelWarn:
		return logWarnStyle
	case logging.LevelError:
		return logErrorStyle
	default:
		return logInfoStyle
	}
}

// logLevelChar returns a single character for the log level.
func logLevelChar(level logging.Level) string {
	switch level {
	case logging.LevelDebug:
		return "D"
	case logging.LevelInfo:
		return "I"
	case logging.LevelWarn:
		return "W"
	case logging.LevelError:
		return "E"
	default:
		return "?"
	}
}

// renderLogViewer renders the log pane in width x height cells.
func renderLogViewer(records []logging.Record, filterLevel logging.Level, scrollOffset, width, height int) string {
	if height < 3 {
		return ""
	}

	var b strings.Builder

	title := fmt.Sprintf(" Logs [%s] ", filterLevel)
	b.WriteString(titleStyle.Render(title) + mutedTextStyle.Render("[1-4] filter  [l] close"))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n")

	visibleRows := height - 2
	filtered := filterRecordsByLevel(records, filterLevel)
	scrollOffset = clampLogScroll(scrollOffset, len(filtered), visibleRows)
	visible := visibleRecords(records, filterLevel, scrollOffset, visibleRows)

	for _, r := range visible {
		b.WriteString(renderLogRecord(r, width))
		b.WriteString("\n")
	}
	for i := len(visible); i < visibleRows; i++ {
		b.WriteString("\n")
	}

	if len(filtered) > visibleRows {
		pct := scrollOffset * 100 / (len(filtered) - visibleRows)
		indicator := mutedTextStyle.Render(fmt.Sprintf(" [%d/%d] %d%%", scrollOffset+1, len(filtered), pct))
		if pad := width - lipgloss.Width(indicator); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteString(indicator)
	}

	return b.String()
}

// renderLogRecord renders one line as "HH:MM:SS [L] component: message".
func renderLogRecord(r logging.Record, width int) string {
	comp := truncate(r.Component, 10)

	// time, level tag, component, separators
	prefixWidth := 8 + 1 + 3 + 1 + len(comp) + 2
	msgWidth := width - prefixWidth
	if msgWidth < 10 {
		msgWidth = 10
	}

	return fmt.Sprintf("%s %s %s: %s",
		logTimeStyle.Render(r.Time.Format("15:04:05")),
		logLevelStyle(r.Level).Render("["+logLevelChar(r.Level)+"]"),
		logComponentStyle.Render(comp),
		truncate(r.Message, msgWidth))
}

// LogViewerState holds the log pane state. Records arrive on Subscription
// and are kept in a logging.Ring.
type LogViewerState struct {
	Open         bool
	Ring         *logging.Ring
	FilterLevel  logging.Level
	ScrollOffset int
	Subscription <-chan logging.Record
}

// NewLogViewerState creates a closed viewer that shows every level.
func NewLogViewerState() *LogViewerState {
	return &LogViewerState{
		Ring:        logging.NewRing(logViewerSize),
		FilterLevel: logging.LevelDebug,
	}
}

// Toggle opens or closes the pane.
func (s *LogViewerState) Toggle() {
	s.Open = !s.Open
}

// SetFilterLevel sets the filter level and resets the scroll.
func (s *LogViewerState) SetFilterLevel(level logging.Level) {
	s.FilterLevel = level
	s.ScrollOffset = 0
}

// Records returns every held record, oldest first.
func (s *LogViewerState) Records() []logging.Record {
	return s.Ring.Tail(-1)
}

// ScrollUp scrolls up by one line.
func (s *LogViewerState) ScrollUp() {
	if s.ScrollOffset > 0 {
		s.ScrollOffset--
	}
}

// ScrollDown scrolls down by one line.
func (s *LogViewerState) ScrollDown(visibleRows int) {
	maxOffset := s.FilteredCount() - visibleRows
	if maxOffset < 0 {
		maxOffset = 0
	}
	if s.ScrollOffset < maxOffset {
		s.ScrollOffset++
	}
}

// Add appends a record.
func (s *LogViewerState) Add(r logging.Record) {
	s.Ring.Push(r)
}

// FilteredCount returns the number of records at or above the filter level.
func (s *LogViewerState) FilteredCount() int {
	return len(filterRecordsByLevel(s.Records(), s.FilterLevel))
}
