// Package tui renders the interactive retrieval view: a live progress bar
// over the flight log download, with the recent log messages underneath.
// It uses Charmbracelet's Bubble Tea, Lip Gloss, and Bubbles.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Flight-deck palette: instrument blue for chrome, amber and red for
// cautions and warnings, as on a PFD.
var (
	instrumentColor = lipgloss.AdaptiveColor{Light: "#1F5FAD", Dark: "#4FA3FF"}
	horizonColor    = lipgloss.AdaptiveColor{Light: "#0B7A8C", Dark: "#3CE0D0"}

	okColor      = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#5FD068"}
	cautionColor = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB02E"}
	warningColor = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5C5C"}

	dimColor   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#7A7A7A"}
	trackColor = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#3A3A3A"}
	frameColor = lipgloss.AdaptiveColor{Light: "#BDBDBD", Dark: "#2F2F2F"}
	brightText = lipgloss.AdaptiveColor{Light: "#111111", Dark: "#F2F2F2"}
)

var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(instrumentColor).
			Padding(0, 1)

	dividerStyle = lipgloss.NewStyle().Foreground(frameColor)

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(instrumentColor)
	mutedTextStyle   = lipgloss.NewStyle().Foreground(dimColor)
	errorTextStyle   = lipgloss.NewStyle().Foreground(warningColor)
	successTextStyle = lipgloss.NewStyle().Foreground(okColor)
	warningTextStyle = lipgloss.NewStyle().Foreground(cautionColor)

	progressFillStyle  = lipgloss.NewStyle().Foreground(okColor)
	progressEmptyStyle = lipgloss.NewStyle().Foreground(trackColor)
	progressPulseStyle = lipgloss.NewStyle().Foreground(horizonColor)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(frameColor).
			Padding(0, 2)
	statsLabelStyle = lipgloss.NewStyle().Foreground(dimColor)
	statsValueStyle = lipgloss.NewStyle().Bold(true).Foreground(brightText)

	keyStyle     = lipgloss.NewStyle().Bold(true).Foreground(instrumentColor)
	keyDescStyle = lipgloss.NewStyle().Foreground(dimColor)

	logTimeStyle      = lipgloss.NewStyle().Foreground(dimColor)
	logComponentStyle = lipgloss.NewStyle().Foreground(horizonColor)
	logDebugStyle     = lipgloss.NewStyle().Foreground(dimColor)
	logInfoStyle      = lipgloss.NewStyle().Foreground(brightText)
	logWarnStyle      = lipgloss.NewStyle().Foreground(cautionColor)
	logErrorStyle     = lipgloss.NewStyle().Bold(true).Foreground(warningColor)
)

func renderDivider(width int) string {
	return dividerStyle.Render(rule("─", width))
}

// rule repeats s n times; n below one yields "".
func rule(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}

// truncate cuts s to at most maxLen runes, ending the cut with an ellipsis.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen == 1 {
		return string(r[:1])
	}
	return string(r[:maxLen-1]) + "…"
}

// center places s in the middle of width cells. Styled input is measured
// by its visible width.
func center(s string, width int) string {
	if lipgloss.Width(s) >= width {
		return s
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}
