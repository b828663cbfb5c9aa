package console

import "github.com/charmbracelet/lipgloss"

var (
	userLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)
