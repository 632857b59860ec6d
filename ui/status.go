package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"djrag/health"
)

var (
	onlineStyle   = lipgloss.NewStyle().Foreground(successColor)
	offlineStyle  = lipgloss.NewStyle().Foreground(dangerColor)
	checkingStyle = lipgloss.NewStyle().Foreground(warningColor)
)

// healthIndicator renders the backend status dot.
func healthIndicator(status health.Status, checking bool) string {
	if checking {
		return checkingStyle.Render("○ checking")
	}
	switch status {
	case health.Healthy:
		return onlineStyle.Render("● online")
	case health.Unreachable:
		return offlineStyle.Render("● offline")
	default:
		return checkingStyle.Render("○ checking")
	}
}

func (a AppView) checking() bool {
	if a.healthChecking {
		return true
	}
	return a.dataModel.Health != nil && a.dataModel.Health.Checking()
}

func (a AppView) renderOfflineBanner() string {
	if a.healthStatus != health.Unreachable {
		return ""
	}
	msg := fmt.Sprintf("Backend unreachable at %s", a.dataModel.Config.BaseURL())
	hint := fmt.Sprintf("%s to retry", a.kb.DisplayActionKey("recheck_health"))
	if a.checking() {
		hint = "retrying..."
	}
	text := msg + "  " + hint
	return BannerStyle.Width(a.width).Render(truncate(text, a.width-2))
}

// chatTitle is the header text for the current session.
func (a AppView) chatTitle() string {
	sess, ok := a.dataModel.CurrentSession()
	if !ok || sess.Title == "" {
		if a.dataModel.HasSession() {
			return "Chat"
		}
		return "DJ Rag"
	}
	return sess.Title
}

func (a AppView) renderHeader() string {
	right := healthIndicator(a.healthStatus, a.checking())
	rightWidth := lipgloss.Width(right)

	title := TitleStyle.Render("DJ Rag")
	if a.dataModel.HasSession() {
		name := a.chatTitle()
		if sess, ok := a.dataModel.CurrentSession(); ok && sess.File() != "" && sess.File() != name {
			name += DimStyle.Render("  📄 " + sess.File())
		}
		title += DimStyle.Render(" │ ") + name
	}

	maxLeft := a.width - rightWidth - 2
	if lipgloss.Width(title) > maxLeft {
		title = runewidth.Truncate(stripANSI(title), maxLeft, "…")
	}

	gap := a.width - lipgloss.Width(title) - rightWidth
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + right
}

func (a AppView) renderStatusBar() string {
	if a.flashTicks > 0 && a.flashMessage != "" {
		return HighlightStyle.Render(a.flashMessage)
	}

	var parts []string
	if a.dataModel.HasSession() {
		parts = append(parts,
			"Enter", "Send",
			a.kb.DisplayActionKey("attach_file"), "Attach",
			a.kb.DisplayActionKey("paste_text"), "Paste",
		)
		if len(a.attachments) > 0 {
			parts = append(parts, a.kb.DisplayActionKey("remove_attachment"), "Unattach")
		}
	} else {
		parts = append(parts, a.kb.DisplayActionKey("new_chat"), "New Chat")
	}
	parts = append(parts,
		a.kb.DisplayActionKey("session_manager"), "Sessions",
		a.kb.DisplayActionKey("help"), "Help",
		a.kb.DisplayActionKey("quit"), "Quit",
	)

	bar := FormatFooter(parts...)
	if lipgloss.Width(bar) > a.width {
		bar = truncate(stripANSI(bar), a.width)
	}
	return StatusStyle.Render(bar)
}
