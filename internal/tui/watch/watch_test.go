package watch

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/quiz"
	"github.com/abhisek/codequiz/internal/run"
)

func tfQuestion(s string) quiz.Question {
	return quiz.Question{Quiz: &quiz.TrueFalse{Statement: s, Answer: true}}
}

func testModel(cancel context.CancelFunc) Model {
	return newModel(3, make(chan quiz.Question), make(chan struct{}), &doneMsg{}, cancel)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return wm, cmd
}

func TestQuestionsAccumulate(t *testing.T) {
	m := testModel(nil)
	m, cmd := update(t, m, questionMsg{q: tfQuestion("x is 1")})
	if cmd == nil {
		t.Fatal("expected a command waiting for the next question")
	}
	m, _ = update(t, m, questionMsg{q: tfQuestion("y is 2")})

	if len(m.accepted) != 2 {
		t.Fatalf("accepted = %d, want 2", len(m.accepted))
	}
	if m.byType[quiz.TypeTrueFalse] != 2 {
		t.Errorf("per-type count = %d, want 2", m.byType[quiz.TypeTrueFalse])
	}

	body := m.body(80)
	if !strings.Contains(body, "y is 2") {
		t.Errorf("recent questions missing from view:\n%s", body)
	}
	if !strings.Contains(body, "2/3") {
		t.Errorf("progress count missing from view:\n%s", body)
	}
}

func TestDoneShowsSummary(t *testing.T) {
	m := testModel(nil)
	res := &orchestrator.Result{Summary: run.Snapshot{
		Accepted:  1,
		Rejected:  4,
		Calls:     6,
		Shortfall: []quiz.Type{quiz.TypeFillBlank},
	}}
	m, _ = update(t, m, doneMsg{res: res})

	if !m.done {
		t.Fatal("expected done")
	}
	body := m.body(100)
	if !strings.Contains(body, "4 rejected") {
		t.Errorf("summary missing counts:\n%s", body)
	}
	if !strings.Contains(body, "fill-blank") {
		t.Errorf("summary missing shortfall:\n%s", body)
	}

	// Ticks stop once the run is done.
	if _, cmd := update(t, m, tickMsg{}); cmd != nil {
		t.Error("expected no further ticks")
	}
}

func TestDoneWithError(t *testing.T) {
	m := testModel(nil)
	m, _ = update(t, m, doneMsg{err: errors.New("no chunks")})
	if !strings.Contains(m.body(80), "no chunks") {
		t.Error("error missing from view")
	}
}

func TestQuitEarlyCancelsRun(t *testing.T) {
	cancelled := false
	m := testModel(func() { cancelled = true })

	m, cmd := update(t, m, tea.KeyPressMsg{Code: 'q', Text: "q"})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !cancelled || !m.aborted {
		t.Error("expected run to be cancelled")
	}
}

func TestQuitAfterDoneDoesNotCancel(t *testing.T) {
	cancelled := false
	m := testModel(func() { cancelled = true })
	m, _ = update(t, m, doneMsg{res: &orchestrator.Result{}})
	_, _ = update(t, m, tea.KeyPressMsg{Code: 'q', Text: "q"})
	if cancelled {
		t.Error("finished run must not be cancelled")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("a  b\nc", 10); got != "a b c" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}
