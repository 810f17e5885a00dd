package output

import "github.com/charmbracelet/lipgloss"

// Palette (ANSI 256).
const (
	ColorPrimary = lipgloss.Color("39")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
	ColorStaged  = lipgloss.Color("177")
)

var (
	// HeaderBox frames the source and outcome of a result.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox frames the row and flight totals.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

var (
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorDanger)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	SizeStyle    = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	// StagedStyle marks a cadence that has been changed locally but not
	// written to the device.
	StagedStyle = lipgloss.NewStyle().Foreground(ColorStaged).Bold(true)

	// DisabledStyle dims objects that are not logged at all.
	DisabledStyle = lipgloss.NewStyle().Foreground(ColorMuted).Faint(true)
)

var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(ColorMuted).
				PaddingRight(2)

	TableRowStyle = lipgloss.NewStyle().PaddingRight(2)
)

// cellStyle picks the style of one table cell from the view and column.
func cellStyle(view View, col int, cell string) lipgloss.Style {
	style := TableRowStyle
	switch {
	case col == 0:
		return style.Foreground(ColorPrimary)
	case view == ViewSettings && col == 3 && cell != "":
		return style.Inherit(StagedStyle)
	case view == ViewSettings && col == 2 && cell == "DISABLED":
		return style.Inherit(DisabledStyle)
	case view == ViewHistory && col == 3:
		return style.Inherit(outcomeStyle(cell))
	}
	return style
}

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "success", "ok":
		return SuccessStyle
	case "cancelled", "partial", "unconfirmed":
		return WarningStyle
	default:
		return ErrorStyle
	}
}
