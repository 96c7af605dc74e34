// Package watch is a live terminal view of a streaming run: questions
// appear as they are accepted, with progress toward the target.
package watch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/quiz"
	"github.com/abhisek/codequiz/internal/stream"
	"github.com/abhisek/codequiz/internal/ui/components"
	"github.com/abhisek/codequiz/internal/ui/layout"
	"github.com/abhisek/codequiz/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	maxRecent    = 8
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StartFunc starts the run, delivering accepted questions to sink.
type StartFunc func(ctx context.Context, sink orchestrator.Sink) (*orchestrator.Result, error)

type questionMsg struct{ q quiz.Question }

type doneMsg struct {
	res *orchestrator.Result
	err error
}

type tickMsg time.Time

// Model is the Bubble Tea model of the live view.
type Model struct {
	target    int
	questions <-chan quiz.Question
	finished  <-chan struct{}
	outcome   *doneMsg
	cancel    context.CancelFunc

	accepted []quiz.Question
	byType   map[quiz.Type]int
	started  time.Time
	elapsed  time.Duration
	frame    int
	done     bool
	aborted  bool
	res      *orchestrator.Result
	err      error

	width  int
	height int
}

// newModel creates a model that reads questions until the channel closes
// and the outcome once finished is closed. cancel, when set, is called if
// the user quits early.
func newModel(target int, questions <-chan quiz.Question, finished <-chan struct{}, outcome *doneMsg, cancel context.CancelFunc) Model {
	return Model{
		target:    target,
		questions: questions,
		finished:  finished,
		outcome:   outcome,
		cancel:    cancel,
		byType:    make(map[quiz.Type]int),
		started:   time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitQuestion(), m.waitDone(), tick())
}

func (m Model) waitQuestion() tea.Cmd {
	return func() tea.Msg {
		q, ok := <-m.questions
		if !ok {
			return nil
		}
		return questionMsg{q: q}
	}
}

func (m Model) waitDone() tea.Cmd {
	return func() tea.Msg {
		<-m.finished
		return *m.outcome
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.done {
				m.aborted = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		}
		return m, nil

	case questionMsg:
		m.accepted = append(m.accepted, msg.q)
		m.byType[msg.q.Type()]++
		return m, m.waitQuestion()

	case doneMsg:
		m.done = true
		m.res = msg.res
		m.err = msg.err
		m.elapsed = time.Since(m.started)
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		m.elapsed = time.Since(m.started)
		return m, tick()
	}
	return m, nil
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	if m.width == 0 {
		v.SetContent(m.body(80))
		return v
	}

	v.AltScreen = true
	header := layout.RenderHeader(m.title(), m.width)
	footer := layout.RenderFooter([]layout.KeyHint{{Key: "q", Description: m.quitHint()}}, m.width)
	v.SetContent(layout.RenderFrame(header, m.body(m.width-2), footer, m.width, m.height))
	return v
}

func (m Model) title() string {
	switch {
	case m.err != nil:
		return theme.Bad.Render("failed")
	case m.done && m.res != nil && m.res.Summary.Complete:
		return theme.Good.Render("complete")
	case m.done:
		return theme.Warn.Render("finished short")
	default:
		return spinnerFrames[m.frame] + " generating"
	}
}

func (m Model) quitHint() string {
	if m.done {
		return "Quit"
	}
	return "Stop"
}

func (m Model) body(width int) string {
	var b strings.Builder

	bar := components.ProgressBar{Label: "Accepted", Done: len(m.accepted), Total: m.target, Width: min(width, 60)}
	b.WriteString(bar.View())
	b.WriteString("\n")
	b.WriteString(theme.Label.Render(fmt.Sprintf("elapsed %s", m.elapsed.Round(100*time.Millisecond))))
	b.WriteString("\n\n")

	types := make([]quiz.Type, 0, len(m.byType))
	for t := range m.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(&b, "%s %d\n", theme.TypeBadge(t), m.byType[t])
	}
	if len(types) > 0 {
		b.WriteString("\n")
	}

	recent := m.accepted[max(0, len(m.accepted)-maxRecent):]
	for _, q := range recent {
		line := theme.TypeBadge(q.Type()) + " " + theme.Body.Render(truncate(q.Quiz.Prompt(), width-18))
		b.WriteString(line + "\n")
	}

	if m.done {
		b.WriteString("\n")
		b.WriteString(m.summary())
	}
	return b.String()
}

func (m Model) summary() string {
	if m.err != nil {
		return theme.Bad.Render("Error: ") + theme.Body.Render(m.err.Error())
	}
	if m.res == nil {
		return ""
	}
	s := m.res.Summary
	lines := []string{
		fmt.Sprintf("%s %d accepted, %d rejected, %d calls (%d failed)",
			theme.Label.Render("Run"), s.Accepted, s.Rejected, s.Calls, s.Failed),
	}
	if len(s.Shortfall) > 0 {
		names := make([]string, len(s.Shortfall))
		for i, t := range s.Shortfall {
			names[i] = string(t)
		}
		lines = append(lines, theme.Warn.Render("No acceptable questions for: ")+theme.Body.Render(strings.Join(names, ", ")))
	}
	return theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n < 4 || len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Run shows the live view while start runs. Quitting early cancels the run.
// It returns once the run has settled.
func Run(ctx context.Context, target int, start StartFunc) (*orchestrator.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := stream.NewChannelSink()
	finished := make(chan struct{})
	outcome := &doneMsg{}
	go func() {
		defer close(finished)
		outcome.res, outcome.err = start(ctx, sink)
		sink.Close()
	}()

	_, err := tea.NewProgram(newModel(target, sink.C(), finished, outcome, cancel)).Run()

	// The view may be gone while the run still emits.
	sink.Abandon()
	cancel()
	<-finished

	if err != nil {
		return outcome.res, fmt.Errorf("live view: %w", err)
	}
	return outcome.res, outcome.err
}
