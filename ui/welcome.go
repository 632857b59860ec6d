package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"djrag/logger"
)

const ASCIIArt = `
 ____      _   ____
|  _ \    | | |  _ \ __ _  __ _
| | | |_  | | | |_) / _' |/ _' |
| |_| | |_| | |  _ < (_| | (_| |
|____/ \___/  |_| \_\__,_|\__, |
                          |___/`

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	featureStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	buttonStyle = lipgloss.NewStyle().
			Width(24).
			Align(lipgloss.Center).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faintColor)

	selectedButtonStyle = lipgloss.NewStyle().
				Width(24).
				Align(lipgloss.Center).
				Padding(0, 2).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(successColor).
				Foreground(successColor).
				Bold(true)
)

// startNewChat creates an empty session and makes it current.
func (a AppView) startNewChat() (AppView, tea.Cmd) {
	if a.creating || a.dataModel.Creating() {
		return a, nil
	}
	logger.With("ui").Debug().Msg("new chat requested")
	a.creating = true
	return a, tea.Batch(a.dataModel.CreateSession(), a.busySpinner.Tick)
}

func (a AppView) renderWelcome(width, height int) string {
	var sb strings.Builder

	for _, line := range strings.Split(strings.TrimPrefix(ASCIIArt, "\n"), "\n") {
		sb.WriteString(titleStyle.Render(line))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(TitleStyle.Render("DJ Rag"))
	sb.WriteString("\n")
	sb.WriteString(featureStyle.Render("Your intelligent document assistant"))
	sb.WriteString("\n\n\n")

	if a.creating {
		sb.WriteString(selectedButtonStyle.Render(a.busySpinner.View() + " Creating..."))
	} else {
		sb.WriteString(selectedButtonStyle.Render("Start New Chat"))
	}
	sb.WriteString("\n\n")

	hint := FormatFooter(
		"Enter/"+a.kb.DisplayActionKey("new_chat"), "New Chat",
		a.kb.DisplayActionKey("session_manager"), "Sessions",
	)
	sb.WriteString(featureStyle.Render(hint))

	content := lipgloss.NewStyle().Align(lipgloss.Center).Render(sb.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
