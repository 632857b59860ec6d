package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"djrag/config"
	"djrag/logger"
)

var Features = []string{
	"• Chat with your PDF, Word, Excel, CSV and PowerPoint files",
	"• Answers with citations and cost metrics",
	"• Sessions cached locally for fast startup",
	"• Keyboard only",
}

func (a AppView) openSettings() (AppView, tea.Cmd) {
	a.closeAllModals()
	a.showSettings = true
	a.textarea.Blur()
	return a, nil
}

func (a AppView) handleSettingsUpdate(msg tea.KeyMsg) (AppView, tea.Cmd) {
	if a.clearingAll {
		return a, nil
	}

	if a.confirmClearAll {
		switch msg.String() {
		case "y":
			a.confirmClearAll = false
			a.clearingAll = true
			logger.With("ui").Info().Msg("clearing all chats")
			return a, tea.Batch(a.dataModel.RemoveAllSessions(), a.busySpinner.Tick)
		case "n", "esc":
			a.confirmClearAll = false
		}
		return a, nil
	}

	switch msg.String() {
	case "esc", a.kb.GetActionKey("settings"):
		a.closeAllModals()
	case "c":
		if len(a.dataModel.Sessions.Sessions()) == 0 {
			a.showInfo("Clear All Chats", "There are no chats to clear.")
			return a, nil
		}
		a.confirmClearAll = true
	}
	return a, nil
}

func (a AppView) renderSettings(width, height int) string {
	if a.confirmClearAll {
		warningText := lipgloss.NewStyle().Foreground(dangerColor).Render("This action cannot be undone.")
		return RenderConfirmationModal(ConfirmationState{
			Active:  true,
			Title:   "⚠ Clear All Chats",
			Message: fmt.Sprintf("Delete all %d chats and their documents?\n\n%s", len(a.dataModel.Sessions.Sessions()), warningText),
		}, width, height)
	}

	if a.clearingAll {
		return renderSpinner("Clearing all chats...", a.busySpinner.View(), width, height)
	}

	modalWidth := modalWidthFor(70, width)
	row := lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Left)
	labelStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(dimColor)
	field := func(label, value string) string {
		return row.Render(labelStyle.Render(fmt.Sprintf("  %-12s", label)) + valueStyle.Render(truncate(value, modalWidth-16)))
	}

	var lines []string
	for _, line := range strings.Split(strings.TrimPrefix(ASCIIArt, "\n"), "\n") {
		lines = append(lines, row.Render("  "+titleStyle.Render(line)))
	}
	lines = append(lines, "")
	for _, feature := range Features {
		lines = append(lines, row.Render("  "+featureStyle.Render(feature)))
	}
	lines = append(lines, "")

	cfg := a.dataModel.Config
	lines = append(lines,
		row.Render(HighlightStyle.Render("  About")),
		field("Version", a.dataModel.Version),
		field("Backend", cfg.BaseURL()),
		field("Data dir", cfg.DataDir()),
		field("Settings", config.GetSettingsFilePath()),
		"",
		row.Render(ErrorStyle.Render("  Danger Zone")),
		row.Render("  "+FormatFooter("c", "Clear All Chats")),
		row.Render(DimStyle.Render("  Deletes every chat and its documents on the backend.")),
	)

	footer := FormatFooter("c", "Clear All", "Esc", "Close")
	return RenderThreeSectionModal("Settings", lines, footer, ModalTypeInfo, modalWidth, width, height)
}
