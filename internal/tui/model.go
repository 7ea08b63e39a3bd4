// Package tui is the terminal rendering of the chat widget: a launcher line
// that opens into a transcript panel with quick-reply options and an input.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cryptosight-backend/internal/widget"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// header, panel border, option row, input, help and status lines
	chromeHeight = 10
)

// Session is the controller surface the UI drives.
type Session interface {
	Toggle(ctx context.Context) error
	Close()
	SubmitOption(ctx context.Context, option string) error
	SubmitFreeText(ctx context.Context, text string) error
}

type exchangeDoneMsg struct{ err error }

type Model struct {
	ctx     context.Context
	session Session
	styles  MarkupStyles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	visible  bool
	busy     bool
	lines    []appendMsg
	options  []string
	selected int
	status   string
	width    int
}

func NewModel(ctx context.Context, session Session, styles MarkupStyles) Model {
	in := textinput.New()
	in.Placeholder = "Type a message, or tab to pick an option"
	in.CharLimit = 500
	in.Width = defaultWidth - 6

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  session,
		styles:   styles,
		input:    in,
		viewport: viewport.New(defaultWidth-4, defaultHeight-chromeHeight),
		spinner:  sp,
		selected: -1,
		width:    defaultWidth,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) run(fn func() error) tea.Cmd {
	return func() tea.Msg { return exchangeDoneMsg{err: fn()} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = max(10, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-chromeHeight)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case showMsg:
		m.visible = true
		return m, m.input.Focus()

	case hideMsg:
		m.visible = false
		m.selected = -1
		m.input.Blur()
		return m, nil

	case appendMsg:
		m.lines = append(m.lines, msg)
		m.refresh()
		return m, nil

	case optionsMsg:
		m.options = []string(msg)
		m.selected = -1
		return m, nil

	case scrollMsg:
		m.viewport.GotoBottom()
		return m, nil

	case busyMsg:
		m.busy = bool(msg)
		if m.busy {
			return m, m.spinner.Tick
		}
		return m, nil

	case exchangeDoneMsg:
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.Is(msg.err, widget.ErrBusy):
			m.status = "Still waiting for the previous reply."
		default:
			m.status = "Request failed: " + msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+o":
		return m, m.run(func() error { return m.session.Toggle(m.ctx) })
	}
	if !m.visible {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m, m.run(func() error { m.session.Close(); return nil })
	case "tab":
		if len(m.options) > 0 {
			m.selected = (m.selected + 1) % len(m.options)
		}
		return m, nil
	case "shift+tab":
		if len(m.options) > 0 {
			if m.selected <= 0 {
				m.selected = len(m.options) - 1
			} else {
				m.selected--
			}
		}
		return m, nil
	case "enter":
		if m.busy {
			m.status = "Still waiting for the previous reply."
			return m, nil
		}
		if m.selected >= 0 && m.selected < len(m.options) {
			option := m.options[m.selected]
			m.selected = -1
			return m, m.run(func() error { return m.session.SubmitOption(m.ctx, option) })
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.run(func() error { return m.session.SubmitFreeText(m.ctx, text) })
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if l.user {
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(l.text))
		} else {
			b.WriteString(botLabelStyle.Render("CryptoSight"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(RenderMarkup(l.text, m.styles)))
		}
	}
	m.viewport.SetContent(b.String())
}

func (m Model) View() string {
	if !m.visible {
		return titleStyle.Render("CryptoSight") + " " +
			helpStyle.Render("ctrl+o: open chat • ctrl+c: quit") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("CryptoSight assistant"))
	b.WriteString("\n")
	b.WriteString(panelStyle.Width(max(10, m.width-2)).Render(m.viewport.View()))
	b.WriteString("\n")

	if len(m.options) > 0 {
		rendered := make([]string, len(m.options))
		for i, o := range m.options {
			if i == m.selected {
				rendered[i] = selectedOptionStyle.Render(o)
			} else {
				rendered[i] = optionStyle.Render(o)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}
	b.WriteString("\n")

	if m.busy {
		b.WriteString(m.spinner.View() + " thinking...")
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: send • tab/shift+tab: choose option • esc: close • ctrl+o: toggle"))
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}
	return b.String()
}

// Transcript returns the rendered lines, for tests and debugging.
func (m Model) Transcript() []string {
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		if l.user {
			out[i] = "You: " + l.text
		} else {
			out[i] = "CryptoSight: " + RenderMarkup(l.text, m.styles)
		}
	}
	return out
}
