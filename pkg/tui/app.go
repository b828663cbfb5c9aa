// Package tui is the full-screen chat surface built on Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sealor/ollama-chat/pkg/chat"
	"github.com/sealor/ollama-chat/pkg/session"
)

// fragmentMsg reports that the turn advanced. reply is a snapshot taken on the
// command goroutine so Update never reads the turn while it is streaming.
type fragmentMsg struct {
	turn  *session.Turn
	reply string
	more  bool
}

type Model struct {
	ctx      context.Context
	controls *session.Controls

	input    textinput.Model
	viewport viewport.Model

	turn    *session.Turn
	partial string

	notice    string
	noticeErr bool
	width     int
	height    int
	quitting  bool
}

func NewModel(ctx context.Context, controls *session.Controls) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your message… (/help for commands)"
	ti.CharLimit = 0
	ti.Focus()

	m := Model{
		ctx:      ctx,
		controls: controls,
		input:    ti,
		viewport: viewport.New(120, 26),
		width:    120,
		height:   30,
	}
	m.layout()
	m.refresh()
	return m
}

func Run(ctx context.Context, controls *session.Controls) error {
	p := tea.NewProgram(NewModel(ctx, controls), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case fragmentMsg:
		if msg.turn != m.turn {
			return m, nil
		}
		m.partial = msg.reply
		if msg.more {
			m.refresh()
			return m, nextFragment(msg.turn)
		}
		m = m.finishTurn()
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			// A second Ctrl+C leaves without waiting for a stream that ignores cancellation.
			if m.turn == nil || m.quitting {
				m.quitting = true
				return m, tea.Quit
			}
			m.quitting = true
			m.turn.Cancel()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.turn != nil {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if session.IsCommand(text) {
		res, err := m.controls.Execute(m.ctx, text)
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		if res.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		m.setNotice(res.Output, false)
		m.refresh()
		return m, nil
	}

	turn, err := m.controls.Session.Begin(m.ctx, text)
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}
	m.turn = turn
	m.partial = ""
	m.setNotice("", false)
	m.refresh()
	return m, nextFragment(turn)
}

func (m Model) finishTurn() Model {
	if _, err := m.controls.Session.Finish(m.turn); err != nil {
		m.setNotice(err.Error(), true)
	}
	m.turn = nil
	m.partial = ""
	m.refresh()
	return m
}

func nextFragment(turn *session.Turn) tea.Cmd {
	return func() tea.Msg {
		more := turn.Next()
		return fragmentMsg{turn: turn, reply: turn.Reply(), more: more}
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.layout()
}

// layout sizes the viewport to what title, status, notice and input leave over.
func (m *Model) layout() {
	reserved := 3
	if m.notice != "" {
		reserved += lipgloss.Height(m.notice)
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(1, m.height-reserved)
	m.input.Width = max(10, m.width-4)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := max(20, m.width-2)
	body := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for _, msg := range m.controls.Session.Messages() {
		b.WriteString(roleLabel(msg.Role) + "\n")
		b.WriteString(body.Render(msg.Content) + "\n\n")
	}
	if m.turn != nil {
		b.WriteString(roleLabel(chat.RoleAssistant) + "\n")
		if m.partial == "" {
			b.WriteString(thinkingStyle.Render("thinking…") + "\n")
		} else {
			b.WriteString(body.Render(m.partial) + "\n")
		}
	}
	return b.String()
}

func roleLabel(role chat.Role) string {
	if role == chat.RoleUser {
		return userRoleStyle.Render("You")
	}
	return assistantRoleStyle.Render("Assistant")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.controls.Session
	title := titleStyle.Render(fmt.Sprintf("ollama-chat · %s", s.Sampling.Model))
	status := statusBarStyle.Width(m.width).Render(fmt.Sprintf("%s │ temp %.2f │ top-p %.2f │ max %d │ keep %d turns │ %d messages",
		s.State(), s.Sampling.Temperature, s.Sampling.TopP, s.Sampling.MaxTokens, s.KeepTurns, len(s.Messages())))

	parts := []string{title, m.viewport.View(), status}
	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		parts = append(parts, style.Render(m.notice))
	}
	parts = append(parts, m.input.View())
	return strings.Join(parts, "\n")
}
