package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"djrag/api"
	"djrag/logger"
)

// sessionSource adapts a session list to fuzzy.Source, matching on the
// title and the file name.
type sessionSource []api.Session

func (s sessionSource) String(i int) string {
	if f := s[i].File(); f != "" && f != s[i].Title {
		return s[i].Title + " " + f
	}
	return s[i].Title
}

func (s sessionSource) Len() int { return len(s) }

func filterSessions(sessions []api.Session, query string) []api.Session {
	if query == "" {
		return sessions
	}
	matches := fuzzy.FindFrom(query, sessionSource(sessions))
	out := make([]api.Session, len(matches))
	for i, match := range matches {
		out[i] = sessions[match.Index]
	}
	return out
}

// getSessionList is the list the session manager shows, after filtering.
func (a AppView) getSessionList() []api.Session {
	sessions := a.dataModel.Sessions.Sessions()
	if !a.sessionFilterMode {
		return sessions
	}
	return filterSessions(sessions, a.sessionFilterInput.Value())
}

func (a *AppView) clampSessionSelection() {
	n := len(a.getSessionList())
	if a.selectedSessionIdx >= n {
		a.selectedSessionIdx = n - 1
	}
	if a.selectedSessionIdx < 0 {
		a.selectedSessionIdx = 0
	}
}

func (a *AppView) openSessionManager() tea.Cmd {
	a.closeAllModals()
	a.showSessionManager = true
	a.textarea.Blur()

	a.selectedSessionIdx = 0
	current := a.dataModel.CurrentSessionID()
	for i, s := range a.dataModel.Sessions.Sessions() {
		if s.ID == current {
			a.selectedSessionIdx = i
			break
		}
	}
	return a.dataModel.FetchSessions()
}

func (a AppView) selectedSession() (api.Session, bool) {
	list := a.getSessionList()
	if a.selectedSessionIdx < 0 || a.selectedSessionIdx >= len(list) {
		return api.Session{}, false
	}
	return list[a.selectedSessionIdx], true
}

func (a AppView) loadSelectedSession() (AppView, tea.Cmd) {
	sess, ok := a.selectedSession()
	if !ok {
		return a, nil
	}
	if a.deletingSessions[sess.ID] {
		return a, nil
	}

	logger.With("ui").Debug().Str("session", sess.ID).Msg("session selected")
	a.dataModel.SelectSession(sess.ID)
	a.closeAllModals()
	a.attachments = nil
	a.layout()
	cmd := a.updateViewportContent(true)
	return a, tea.Batch(cmd, a.dataModel.FetchMessages(sess.ID))
}

func (a AppView) handleSessionManagerUpdate(msg tea.KeyMsg) (AppView, tea.Cmd) {
	if a.confirmDeleteSession != nil {
		switch msg.String() {
		case "y":
			id := a.confirmDeleteSession.ID
			a.confirmDeleteSession = nil
			a.deletingSessions[id] = true
			return a, tea.Batch(a.dataModel.RemoveSession(id), a.busySpinner.Tick)
		case "n", "esc":
			a.confirmDeleteSession = nil
		}
		return a, nil
	}

	if a.sessionFilterMode {
		switch msg.String() {
		case "esc":
			a.sessionFilterMode = false
			a.sessionFilterInput.Blur()
			a.sessionFilterInput.SetValue("")
			a.selectedSessionIdx = 0
			return a, nil

		case "enter":
			return a.loadSelectedSession()

		case a.kb.GetActionKey("session_down_filtered"), "down":
			if a.selectedSessionIdx < len(a.getSessionList())-1 {
				a.selectedSessionIdx++
			}
			return a, nil

		case a.kb.GetActionKey("session_up_filtered"), "up":
			if a.selectedSessionIdx > 0 {
				a.selectedSessionIdx--
			}
			return a, nil
		}

		var cmd tea.Cmd
		a.sessionFilterInput, cmd = a.sessionFilterInput.Update(msg)
		a.clampSessionSelection()
		return a, cmd
	}

	switch msg.String() {
	case a.kb.GetActionKey("session_filter"):
		a.sessionFilterMode = true
		a.sessionFilterInput.SetValue("")
		a.sessionFilterInput.Focus()
		a.selectedSessionIdx = 0
		return a, textinput.Blink

	case "esc", a.kb.GetActionKey("session_manager"):
		a.closeAllModals()
		return a, nil

	case a.kb.GetActionKey("session_down"), a.kb.GetActionKey("session_down_arrow"):
		if a.selectedSessionIdx < len(a.getSessionList())-1 {
			a.selectedSessionIdx++
		}
		return a, nil

	case a.kb.GetActionKey("session_up"), a.kb.GetActionKey("session_up_arrow"):
		if a.selectedSessionIdx > 0 {
			a.selectedSessionIdx--
		}
		return a, nil

	case "enter":
		return a.loadSelectedSession()

	case a.kb.GetActionKey("session_new"):
		a.closeAllModals()
		return a.startNewChat()

	case a.kb.GetActionKey("session_delete"):
		if sess, ok := a.selectedSession(); ok && !a.deletingSessions[sess.ID] {
			a.confirmDeleteSession = &sess
		}
		return a, nil
	}

	return a, nil
}

func (a AppView) renderSessionManager(width, height int) string {
	modalWidth := width - 10
	if modalWidth > 100 {
		modalWidth = 100
	}
	modalHeight := height - 6

	if a.confirmDeleteSession != nil {
		warningText := lipgloss.NewStyle().Foreground(dangerColor).Render("This action cannot be undone.")
		return RenderConfirmationModal(ConfirmationState{
			Active:  true,
			Title:   "⚠ Delete Session",
			Message: fmt.Sprintf("Are you sure you want to delete:\n\n\"%s\"\n\n%s", a.confirmDeleteSession.Title, warningText),
		}, width, height)
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Session Manager")

	all := a.dataModel.Sessions.Sessions()
	state := a.dataModel.Sessions.State()
	displayList := a.getSessionList()

	var header string
	switch {
	case a.sessionFilterMode:
		header = a.sessionFilterInput.View()
	case state.Loading && len(all) > 0:
		header = fmt.Sprintf("%d sessions %s", len(all), a.busySpinner.View())
	default:
		header = fmt.Sprintf("%d sessions", len(all))
	}

	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	maxLines := modalHeight - 8
	if maxLines < 3 {
		maxLines = 3
	}

	emptyLine := strings.Repeat(" ", modalWidth)
	sessionLines := []string{emptyLine}

	switch {
	case !state.Valid && len(all) == 0 && state.Err == nil:
		for i := 0; i < 4 && i < maxLines; i++ {
			sessionLines = append(sessionLines, "  "+SkeletonStyle.Render(strings.Repeat("░", modalWidth/2-i*4)))
		}
	case len(displayList) == 0:
		emptyMsg := "No chats yet. Press n to start one."
		if a.sessionFilterMode {
			emptyMsg = "No matches found"
		} else if state.Err != nil {
			emptyMsg = "Could not load sessions: " + state.Err.Error()
		}
		sessionLines = append(sessionLines, lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render(truncate(emptyMsg, modalWidth-4)))
	default:
		start, end := visibleWindow(len(displayList), a.selectedSessionIdx, maxLines)
		current := a.dataModel.CurrentSessionID()
		for i := start; i < end; i++ {
			sessionLines = append(sessionLines, a.renderSessionRow(displayList[i], i == a.selectedSessionIdx, displayList[i].ID == current, modalWidth))
		}
	}
	sessionLines = append(sessionLines, emptyLine)

	var footerText string
	if a.sessionFilterMode {
		footerText = FormatFooter("Type", "to filter", a.kb.DisplayActionKey("session_down_filtered")+"/"+a.kb.DisplayActionKey("session_up_filtered"), "Navigate", "Enter", "Load", "Esc", "Cancel")
	} else {
		footerText = FormatFooter("/", "Filter", "j/k", "Navigate", "Enter", "Load", "n", "New", "d", "Delete", "Esc", "Close")
	}
	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footerText)

	sections := []string{titleSection, headerSection}
	sections = append(sections, sessionLines...)
	sections = append(sections, footerSection)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}

// visibleWindow returns the [start, end) slice of n rows that keeps
// selected in view.
func visibleWindow(n, selected, maxLines int) (int, int) {
	if n <= maxLines {
		return 0, n
	}
	switch {
	case selected < maxLines/2:
		return 0, maxLines
	case selected >= n-maxLines/2:
		return n - maxLines, n
	default:
		start := selected - maxLines/2
		return start, start + maxLines
	}
}

func (a AppView) renderSessionRow(s api.Session, selected, current bool, modalWidth int) string {
	indicator := "  "
	if selected {
		indicator = "▶ "
	}

	var right string
	if a.deletingSessions[s.ID] {
		right = a.busySpinner.View() + " deleting..."
	} else {
		right = formatTimeAgo(s.CreatedAt.Time)
		if f := s.File(); f != "" {
			right = "📄 " + truncate(f, 24) + "  " + right
		}
	}

	marker := ""
	if current {
		marker = " (current)"
	}

	title := s.Title
	if title == "" {
		title = api.DefaultSessionTitle
	}
	maxTitle := modalWidth - 6 - lipgloss.Width(right) - runewidth.StringWidth(marker) - 2
	title = truncate(title, maxTitle)

	rowStyle := lipgloss.NewStyle()
	switch {
	case a.deletingSessions[s.ID]:
		rowStyle = DimStyle
	case selected:
		rowStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case current:
		rowStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	}

	left := indicator + rowStyle.Render(title)
	if marker != "" {
		left += rowStyle.Render(marker)
	}

	spacing := modalWidth - 4 - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 2 {
		spacing = 2
	}

	line := "  " + left + strings.Repeat(" ", spacing) + rowStyle.Render(right)
	return lipgloss.NewStyle().Width(modalWidth).Render(line)
}
