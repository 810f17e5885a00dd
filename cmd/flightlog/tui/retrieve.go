package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
)

// RetrieveModel renders a running retrieval session.
type RetrieveModel struct {
	target    retrieval.Target
	source    string
	progress  retrieval.Progress
	seen      bool
	spinner   spinner.Model
	startTime time.Time
	width     int
	height    int
	done      bool
	result    retrieval.Result
	err       error
}

// ProgressMsg is sent for each applied entry.
type ProgressMsg retrieval.Progress

// RetrievalDoneMsg is sent when the session ends.
type RetrievalDoneMsg struct {
	Result retrieval.Result
	Err    error
}

// NewRetrieveModel creates the progress view for target.
func NewRetrieveModel(target retrieval.Target, source string) RetrieveModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(instrumentColor)

	return RetrieveModel{
		target:    target,
		source:    source,
		spinner:   s,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// Init starts the spinner.
func (m RetrieveModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the progress view.
func (m RetrieveModel) Update(msg tea.Msg) (RetrieveModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ProgressMsg:
		m.SetProgress(retrieval.Progress(msg))
		return m, nil

	case RetrievalDoneMsg:
		m.SetDone(msg.Result, msg.Err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress view without the log pane.
func (m RetrieveModel) View() string {
	return outerBoxStyle.Width(m.width - 2).Render(m.body(m.contentWidth()))
}

func (m RetrieveModel) contentWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (m RetrieveModel) body(width int) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus(width))
	b.WriteString("\n\n")
	b.WriteString(m.renderProgressBar(width))
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(width))
	b.WriteString("\n")

	if m.done {
		if line := renderSessionMetrics(m.result.Retries, m.result.Skipped, m.result.Duplicates, m.elapsed()); line != "" {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m RetrieveModel) renderHeader(width int) string {
	title := renderAppHeader(m.target, m.progress.Entries, m.source)
	hint := mutedTextStyle.Render("[q stop]  [l logs]")
	if m.done {
		hint = mutedTextStyle.Render("[q quit]  [l logs]")
	}

	spacing := width - lipgloss.Width(title) - lipgloss.Width(hint)
	if spacing < 1 {
		spacing = 1
	}
	return title + strings.Repeat(" ", spacing) + hint
}

func (m RetrieveModel) renderStatus(width int) string {
	if !m.done {
		what := "Requesting log status"
		if m.seen {
			what = fmt.Sprintf("Retrieving flight %d entry %d", m.progress.Flight, m.progress.Entry)
		}
		return fmt.Sprintf("  %s %s", m.spinner.View(), truncate(what, width-6))
	}

	switch m.result.Outcome {
	case retrieval.OutcomeSuccess:
		return successTextStyle.Render(fmt.Sprintf("  Retrieved %s entries from %d flights",
			humanize.Comma(int64(m.result.Entries)), len(m.result.Flights)))
	case retrieval.OutcomeCancelled:
		return warningTextStyle.Render(fmt.Sprintf("  Cancelled, kept %s entries", humanize.Comma(int64(m.result.Entries))))
	}

	err := m.err
	if err == nil {
		err = m.result.Err
	}
	return errorTextStyle.Render(truncate(fmt.Sprintf("  Error: %v", err), width))
}

// fraction returns how far the session is, or -1 when unknown. Only an
// all-flights session with a known last flight has a meaningful total.
func (m RetrieveModel) fraction() float64 {
	if m.done && m.result.Outcome == retrieval.OutcomeSuccess {
		return 1
	}
	if !m.seen || !m.progress.Target.All || m.progress.LastFlight == 0 {
		return -1
	}
	return float64(m.progress.Flight) / float64(m.progress.LastFlight+1)
}

// renderProgressBar draws a filled bar when the total is known and an
// animated pulse otherwise.
func (m RetrieveModel) renderProgressBar(width int) string {
	barWidth := width - 4
	if barWidth < 10 {
		barWidth = 10
	}

	var bar strings.Builder
	bar.WriteString("  ")

	if f := m.fraction(); f >= 0 {
		filled := int(f * float64(barWidth))
		bar.WriteString(progressFillStyle.Render(rule("█", filled)))
		bar.WriteString(progressEmptyStyle.Render(rule("░", barWidth-filled)))
		return bar.String()
	}

	position := int(m.elapsed().Seconds()*8) % (barWidth * 2)
	if position > barWidth {
		position = barWidth*2 - position
	}
	pulseWidth := barWidth / 5
	if pulseWidth < 3 {
		pulseWidth = 3
	}
	for i := range barWidth {
		dist := i - position
		if dist < 0 {
			dist = -dist
		}
		if dist < pulseWidth {
			bar.WriteString(progressPulseStyle.Render("█"))
		} else {
			bar.WriteString(progressEmptyStyle.Render("░"))
		}
	}
	return bar.String()
}

func (m RetrieveModel) renderStats(totalWidth int) string {
	boxWidth := (totalWidth - 12) / 5
	if boxWidth < 10 {
		boxWidth = 10
	}

	flightVal, entryVal := "-", "-"
	if m.seen {
		flightVal = fmt.Sprintf("%d", m.progress.Flight)
		if m.progress.Target.All && m.progress.LastFlight > 0 {
			flightVal = fmt.Sprintf("%d/%d", m.progress.Flight, m.progress.LastFlight)
		}
		entryVal = fmt.Sprintf("%d", m.progress.Entry)
	}

	entries := m.progress.Entries
	retriesVal := "-"
	if m.done {
		entries = m.result.Entries
		retriesVal = humanize.Comma(int64(m.result.Retries))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		"  ", renderStatBox("Flight", flightVal, boxWidth),
		" ", renderStatBox("Entry", entryVal, boxWidth),
		" ", renderStatBox("Entries", humanize.Comma(int64(entries)), boxWidth),
		" ", renderStatBox("Retries", retriesVal, boxWidth),
		" ", renderStatBox("Time", formatDuration(m.elapsed()), boxWidth))
}

func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-4),
		center(statsValueStyle.Render(value), width-4))
	return statsBoxStyle.Width(width).Render(content)
}

func (m RetrieveModel) elapsed() time.Duration {
	if m.done && !m.result.Started.IsZero() && !m.result.Finished.IsZero() {
		return m.result.Finished.Sub(m.result.Started)
	}
	return time.Since(m.startTime)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// SetProgress records the latest applied entry.
func (m *RetrieveModel) SetProgress(p retrieval.Progress) {
	m.progress = p
	m.seen = true
}

// SetDone marks the session as finished.
func (m *RetrieveModel) SetDone(res retrieval.Result, err error) {
	m.done = true
	m.result = res
	m.err = err
}

// IsDone reports whether the session has ended.
func (m RetrieveModel) IsDone() bool {
	return m.done
}
