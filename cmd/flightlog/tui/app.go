package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/flightlog/pkg/flightlog/events"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/manager"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
)

// Options configures the TUI application.
type Options struct {
	Manager *manager.Manager
	Target  retrieval.Target

	// Source names the link in the header, e.g. "daemon" or "sim".
	Source string
}

// Model is the Bubble Tea model for a retrieval session.
type Model struct {
	retrieve RetrieveModel
	logs     *LogViewerState
	options  Options

	ctx    context.Context
	cancel context.CancelFunc
	sub    *events.Subscriber

	done       bool
	quitOnDone bool

	width  int
	height int
}

// NewModel creates a model and subscribes it to retrieval progress.
func NewModel(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	logs := NewLogViewerState()
	if recent := logging.Recent(); recent != nil {
		for _, r := range recent.Tail(logViewerSize) {
			logs.Add(r)
		}
	}
	logs.Subscription = logging.Subscribe()

	return Model{
		retrieve: NewRetrieveModel(opts.Target, opts.Source),
		logs:     logs,
		options:  opts,
		ctx:      ctx,
		cancel:   cancel,
		sub:      opts.Manager.Subscribe(events.RetrievalProgress),
		width:    80,
		height:   24,
	}
}

// Init starts the session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.retrieve.Init(),
		m.startRetrieval(),
		m.listenForProgress(),
		m.listenForLogs(),
		m.tickUI(),
	)
}

// tickUIMsg triggers a UI refresh.
type tickUIMsg struct{}

// logRecordMsg carries one log record to the viewer.
type logRecordMsg logging.Record

func (m Model) tickUI() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return tickUIMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.retrieve.width = msg.Width
		m.retrieve.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickUIMsg:
		// keeps the pulse and the clock moving
		if !m.done {
			return m, m.tickUI()
		}
		return m, nil

	case ProgressMsg:
		m.retrieve.SetProgress(retrieval.Progress(msg))
		return m, m.listenForProgress()

	case logRecordMsg:
		m.logs.Add(logging.Record(msg))
		return m, m.listenForLogs()

	case RetrievalDoneMsg:
		m.done = true
		m.retrieve.SetDone(msg.Result, msg.Err)
		if m.quitOnDone {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.retrieve, cmd = m.retrieve.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.done {
			return m, tea.Quit
		}
		m.quitOnDone = true
		m.stop()
		return m, nil

	case "esc":
		if m.logs.Open {
			m.logs.Toggle()
			return m, nil
		}
		return m.quitOrStop()

	case "q":
		return m.quitOrStop()

	case "l":
		m.logs.Toggle()
		return m, nil
	}

	if !m.logs.Open {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.logs.ScrollUp()
	case "down", "j":
		m.logs.ScrollDown(m.logRows())
	case "1":
		m.logs.SetFilterLevel(logging.LevelDebug)
	case "2":
		m.logs.SetFilterLevel(logging.LevelInfo)
	case "3":
		m.logs.SetFilterLevel(logging.LevelWarn)
	case "4":
		m.logs.SetFilterLevel(logging.LevelError)
	}
	return m, nil
}

// quitOrStop cancels a running session; the view stays up to show how it
// ended. Once done it quits.
func (m Model) quitOrStop() (tea.Model, tea.Cmd) {
	if m.done {
		return m, tea.Quit
	}
	m.stop()
	return m, nil
}

func (m Model) stop() {
	m.options.Manager.CancelRetrieval()
	m.cancel()
}

func (m Model) logRows() int {
	rows := m.height/2 - 2
	if rows < 1 {
		rows = 1
	}
	return rows
}

// View renders the model.
func (m Model) View() string {
	width := m.retrieve.contentWidth()
	content := m.retrieve.body(width)

	if m.logs.Open {
		paneHeight := m.height - strings.Count(content, "\n") - 3
		if paneHeight > 3 {
			content += "\n" + renderLogViewer(m.logs.Records(), m.logs.FilterLevel, m.logs.ScrollOffset, width, paneHeight)
		}
	} else if m.done {
		content += "\n" + keyStyle.Render("  q") + keyDescStyle.Render(" quit  ") +
			keyStyle.Render("l") + keyDescStyle.Render(" logs")
	}

	lines := strings.Count(content, "\n") + 1
	if avail := m.height - 2; avail > lines {
		content += strings.Repeat("\n", avail-lines)
	}
	return outerBoxStyle.Width(m.width - 2).Render(content)
}

func (m Model) startRetrieval() tea.Cmd {
	mgr, ctx, target := m.options.Manager, m.ctx, m.options.Target
	return func() tea.Msg {
		res, err := mgr.RetrieveLogs(ctx, target)
		return RetrievalDoneMsg{Result: res, Err: err}
	}
}

// listenForProgress waits for the next progress event. Progress events
// may be dropped by the broadcaster under load; the view only needs the
// latest one.
func (m Model) listenForProgress() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	ch := m.sub.Events
	return func() tea.Msg {
		for ev := range ch {
			if p, ok := ev.Payload.(retrieval.Progress); ok {
				return ProgressMsg(p)
			}
		}
		return nil
	}
}

func (m Model) listenForLogs() tea.Cmd {
	ch := m.logs.Subscription
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		rec, ok := <-ch
		if !ok {
			return nil
		}
		return logRecordMsg(rec)
	}
}

// Result returns how the session ended.
func (m Model) Result() (retrieval.Result, error) {
	return m.retrieve.result, m.retrieve.err
}

func (m Model) close() {
	m.cancel()
	if m.sub != nil {
		m.options.Manager.Unsubscribe(m.sub.ID)
	}
	if m.logs.Subscription != nil {
		logging.Unsubscribe(m.logs.Subscription)
	}
}

// Run shows the retrieval view until the session ends and the user quits.
func Run(opts Options) (retrieval.Result, error) {
	model := NewModel(opts)
	defer model.close()

	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		// the session may still be running without a view
		opts.Manager.CancelRetrieval()
		return retrieval.Result{}, err
	}
	return final.(Model).Result()
}
