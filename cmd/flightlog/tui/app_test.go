package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/flightlog/pkg/daemon/device"
	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/manager"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

func newTestManager(t *testing.T) *manager.Manager {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	cat := uavo.Default()
	if _, err := device.Seed(s, cat, device.GenerateOptions{Flights: 2, EntriesPerFlight: 3, Seed: 5}); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	tr := link.NewAsync(device.New(cat, s), link.AsyncOptions{})
	m := manager.New(tr, manager.Options{Catalogue: cat})
	t.Cleanup(func() {
		m.Close()
		_ = tr.Close()
		_ = s.Close()
	})
	return m
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	m := NewModel(Options{Manager: newTestManager(t), Target: retrieval.AllFlights(), Source: "sim"})
	t.Cleanup(m.close)
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelRunsRetrieval(t *testing.T) {
	m := newTestModel(t)

	msg := m.startRetrieval()()
	done, ok := msg.(RetrievalDoneMsg)
	if !ok {
		t.Fatalf("expected RetrievalDoneMsg, got %T", msg)
	}
	if done.Err != nil {
		t.Fatalf("retrieval failed: %v", done.Err)
	}
	if done.Result.Entries != 6 {
		t.Errorf("expected 6 entries, got %d", done.Result.Entries)
	}

	next, _ := m.Update(done)
	m = next.(Model)
	res, err := m.Result()
	if err != nil || res.Outcome != retrieval.OutcomeSuccess {
		t.Errorf("unexpected result %v, %v", res.Outcome, err)
	}

	if _, cmd := m.Update(key("q")); !isQuit(cmd) {
		t.Error("q should quit once the session is done")
	}
}

func TestModelProgressSubscription(t *testing.T) {
	m := newTestModel(t)

	progress := make(chan tea.Msg, 1)
	go func() { progress <- m.listenForProgress()() }()

	m.startRetrieval()()

	select {
	case msg := <-progress:
		if _, ok := msg.(ProgressMsg); !ok {
			t.Errorf("expected ProgressMsg, got %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no progress event received")
	}
}

func TestModelStopWhileRunning(t *testing.T) {
	m := newTestModel(t)

	next, cmd := m.Update(key("q"))
	if isQuit(cmd) {
		t.Error("q should stop, not quit, while the session runs")
	}
	m = next.(Model)
	if m.ctx.Err() == nil {
		t.Error("expected the session context to be cancelled")
	}

	next, cmd = m.Update(key("ctrl+c"))
	m = next.(Model)
	if isQuit(cmd) || !m.quitOnDone {
		t.Error("ctrl+c should defer quitting until the session ends")
	}

	_, cmd = m.Update(RetrievalDoneMsg{Result: retrieval.Result{Outcome: retrieval.OutcomeCancelled}})
	if !isQuit(cmd) {
		t.Error("expected quit once the cancelled session reported back")
	}
}

func TestModelLogPane(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)

	next, _ = m.Update(logRecordMsg(logging.Record{Time: time.Now(), Level: logging.LevelWarn, Component: "retrieval", Message: "request timed out"}))
	m = next.(Model)
	if m.logs.Ring.Len() == 0 {
		t.Fatal("expected the record to be kept")
	}

	next, _ = m.Update(key("l"))
	m = next.(Model)
	if !m.logs.Open {
		t.Fatal("l should open the log pane")
	}

	next, _ = m.Update(key("3"))
	m = next.(Model)
	if m.logs.FilterLevel != logging.LevelWarn {
		t.Errorf("expected warn filter, got %v", m.logs.FilterLevel)
	}

	next, cmd := m.Update(key("esc"))
	m = next.(Model)
	if m.logs.Open || isQuit(cmd) {
		t.Error("esc should close the pane first")
	}
}
