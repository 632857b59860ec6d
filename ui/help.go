package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"djrag/api"
)

func (a AppView) renderHelpModal(width, height int) string {
	kb := a.kb

	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("DJ Rag - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	globalActions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Global Actions"),
		fmt.Sprintf("• %-13s New chat", kb.DisplayActionKey("new_chat")),
		fmt.Sprintf("• %-13s Session Manager", kb.DisplayActionKey("session_manager")),
		fmt.Sprintf("• %-13s Settings", kb.DisplayActionKey("settings")),
		fmt.Sprintf("• %-13s Recheck backend", kb.DisplayActionKey("recheck_health")),
		fmt.Sprintf("• %-13s Toggle this help", kb.DisplayActionKey("help")),
		fmt.Sprintf("• %-13s Quit", kb.DisplayActionKey("quit")),
	)

	chatActions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat Actions"),
		"• Enter         Send message",
		"• Alt+Enter     New line",
		fmt.Sprintf("• %-13s Attach document", kb.DisplayActionKey("attach_file")),
		fmt.Sprintf("• %-13s Remove last attachment", kb.DisplayActionKey("remove_attachment")),
		fmt.Sprintf("• %-13s Paste text", kb.DisplayActionKey("paste_text")),
		fmt.Sprintf("• %-13s Clear input", kb.DisplayActionKey("clear_input")),
		fmt.Sprintf("• %-13s Copy last response", kb.DisplayActionKey("yank_last_response")),
	)

	chatNavigation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat Navigation"),
		fmt.Sprintf("• %-13s Scroll down 1 line", kb.DisplayActionKey("scroll_down")),
		fmt.Sprintf("• %-13s Scroll up 1 line", kb.DisplayActionKey("scroll_up")),
		fmt.Sprintf("• %-13s Half page down", kb.DisplayActionKey("half_page_down")),
		fmt.Sprintf("• %-13s Half page up", kb.DisplayActionKey("half_page_up")),
		fmt.Sprintf("• %-13s Full page down", kb.DisplayActionKey("page_down")),
		fmt.Sprintf("• %-13s Full page up", kb.DisplayActionKey("page_up")),
		fmt.Sprintf("• %-13s Jump to top", kb.DisplayActionKey("scroll_to_top")),
		fmt.Sprintf("• %-13s Jump to bottom", kb.DisplayActionKey("scroll_to_bottom")),
	)

	guide := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Getting Started"),
		"1. Start a new chat",
		"2. Attach a document or paste text",
		"3. Ask questions about it",
		"4. Answers cite their sources",
		"",
		DimStyle.Render("Formats: "+strings.Join(api.SupportedExtensions, " ")),
	)

	column1 := lipgloss.JoinVertical(
		lipgloss.Left,
		globalActions,
		"",
		guide,
	)

	column2 := lipgloss.JoinVertical(
		lipgloss.Left,
		chatActions,
		"",
		chatNavigation,
	)

	columnStyle := lipgloss.NewStyle().Width(44).PaddingLeft(4)

	twoColumns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(column1),
		"  ",
		columnStyle.Render(column2),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("Press %s or Esc to close this help", kb.DisplayActionKey("help")))

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		twoColumns,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(faintColor).
		Padding(1, 2)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
