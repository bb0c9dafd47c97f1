package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GoCodeAlone/ranked/client"
	"github.com/GoCodeAlone/ranked/task"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

// focus is the part of the screen that receives keys.
type focus int

const (
	focusInput focus = iota
	focusList
)

// reorderedMsg carries the answer to an add or rerank request.
type reorderedMsg struct {
	verb string
	res  client.Result
	err  error
}

// tuiModel is the interactive list. Adds and reranks run in the background while
// the model shows a spinner; local edits are refused until the answer arrives.
type tuiModel struct {
	ctx       context.Context
	store     task.Store
	reorderer *client.Reorderer

	tasks   task.List
	cursor  int
	focus   focus
	input   textinput.Model
	spinner spinner.Model
	busy    string // verb of the request in flight, "" when idle

	notice string
	err    error
}

func newTUIModel(ctx context.Context, store task.Store, r *client.Reorderer, tasks task.List) *tuiModel {
	in := textinput.New()
	in.Placeholder = "new task"
	in.Prompt = "+ "
	in.CharLimit = 500
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = mutedStyle

	return &tuiModel{
		ctx:       ctx,
		store:     store,
		reorderer: r,
		tasks:     tasks,
		input:     in,
		spinner:   sp,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateList(msg)

	case reorderedMsg:
		return m, m.applyResult(msg)

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy != "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.start("add", func(ctx context.Context, tasks task.List) (client.Result, error) {
			return m.reorderer.AddTask(ctx, tasks, text)
		})
	case "tab", "esc":
		m.setFocus(focusList)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "esc", "a":
		m.setFocus(focusInput)
		return m, textinput.Blink
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case " ", "x":
		m.editAtCursor(func(l task.List, id string) (task.List, error) { return l.Toggle(id) })
	case "d", "delete":
		m.editAtCursor(func(l task.List, id string) (task.List, error) { return l.Remove(id) })
	case "K", "shift+up":
		if m.editAtCursor(func(l task.List, id string) (task.List, error) { return l.Move(id, m.cursor-1) }) && m.cursor > 0 {
			m.cursor--
		}
	case "J", "shift+down":
		if m.editAtCursor(func(l task.List, id string) (task.List, error) { return l.Move(id, m.cursor+1) }) && m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case "r":
		if m.busy != "" || len(m.tasks) < 2 {
			return m, nil
		}
		return m, m.start("rerank", m.reorderer.Rerank)
	}
	return m, nil
}

func (m *tuiModel) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// start runs call against the current list in the background.
func (m *tuiModel) start(verb string, call func(context.Context, task.List) (client.Result, error)) tea.Cmd {
	m.busy = verb
	m.notice, m.err = "", nil
	ctx, tasks := m.ctx, m.tasks.Clone()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := call(ctx, tasks)
		return reorderedMsg{verb: verb, res: res, err: err}
	})
}

func (m *tuiModel) applyResult(msg reorderedMsg) tea.Cmd {
	if errors.Is(msg.err, client.ErrSuperseded) {
		return nil
	}
	m.busy = ""
	if msg.err != nil {
		m.err = msg.err
		return nil
	}
	if msg.res.Fallback {
		if msg.verb == "rerank" {
			m.notice = "could not rerank, order unchanged: " + msg.res.Cause.Error()
			return nil
		}
		m.notice = "could not reorder with the daemon, task placed locally: " + msg.res.Cause.Error()
	}
	m.commit(msg.res.Tasks)
	return nil
}

// editAtCursor applies fn to the selected task and saves. It reports whether the
// list changed.
func (m *tuiModel) editAtCursor(fn func(task.List, string) (task.List, error)) bool {
	if m.busy != "" || len(m.tasks) == 0 {
		return false
	}
	out, err := fn(m.tasks, m.tasks[m.cursor].ID)
	if err != nil {
		m.err = err
		return false
	}
	m.notice, m.err = "", nil
	m.commit(out)
	return true
}

func (m *tuiModel) commit(tasks task.List) {
	m.tasks = tasks
	if m.cursor >= len(tasks) {
		m.cursor = max(len(tasks)-1, 0)
	}
	if err := m.store.Save(tasks); err != nil {
		m.err = fmt.Errorf("save tasks: %w", err)
	}
}

func (m *tuiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ranked"))
	b.WriteString("\n\n")

	if len(m.tasks) == 0 {
		b.WriteString(mutedStyle.Render("  no tasks"))
		b.WriteString("\n")
	}
	for i, t := range m.tasks {
		marker := "  "
		if m.focus == focusList && i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		box, style := "[ ]", openStyle
		if t.Completed {
			box, style = "[x]", doneStyle
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			marker,
			indexStyle.Render(fmt.Sprintf("%d.", i+1)),
			" ", box, " ",
			style.Render(t.Text),
		))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.busy != "":
		b.WriteString(m.spinner.View() + mutedStyle.Render(" waiting for the daemon to "+m.busy+"..."))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case m.notice != "":
		b.WriteString(renderNotice(m.notice))
		b.WriteString("\n")
	}

	if m.focus == focusInput {
		b.WriteString(mutedStyle.Render("enter add • tab list • ctrl+c quit"))
	} else {
		b.WriteString(mutedStyle.Render("j/k move • x done • d delete • J/K reorder • r rerank • tab add • q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *app) cmdTUI(ctx context.Context) error {
	tasks, err := a.store.Load()
	if err != nil {
		return err
	}
	m := newTUIModel(ctx, a.store, a.reorderer, tasks)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
