package ui

import (
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"djrag/api"
	"djrag/logger"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if tick, ok := msg.(spinner.TickMsg); ok {
		return a.handleSpinnerTick(tick)
	}

	// The picker needs its directory listings; keys are routed below.
	if a.filePicker.Active {
		if _, isKey := msg.(tea.KeyMsg); !isKey {
			_, cmd := a.filePicker.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		a.paste.Content.SetWidth(modalWidthFor(70, a.width) - 4)
		cmds = append(cmds, a.updateViewportContent(true))
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		next, cmd := a.handleKey(msg)
		next.layout()
		cmds = append(cmds, cmd)
		return next, tea.Batch(cmds...)
	}

	if next, cmd, handled := a.handleModelMessage(msg); handled {
		next.layout()
		cmds = append(cmds, cmd)
		return next, tea.Batch(cmds...)
	}

	// Cursor blinks and similar go to whichever input has focus.
	var cmd tea.Cmd
	switch {
	case a.paste.Active:
		a.paste.Title, cmd = a.paste.Title.Update(msg)
		cmds = append(cmds, cmd)
		a.paste.Content, cmd = a.paste.Content.Update(msg)
	case a.sessionFilterMode:
		a.sessionFilterInput, cmd = a.sessionFilterInput.Update(msg)
	default:
		a.textarea, cmd = a.textarea.Update(msg)
	}
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a AppView) busy() bool {
	return a.creating || a.clearingAll || a.paste.Ingesting || len(a.deletingSessions) > 0 ||
		(a.showSessionManager && a.dataModel.Sessions.State().Loading)
}

func (a AppView) handleSpinnerTick(msg spinner.TickMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if a.sending {
		var cmd tea.Cmd
		a.typingSpinner, cmd = a.typingSpinner.Update(msg)
		cmds = append(cmds, cmd)
		if msg.ID == a.typingSpinner.ID() {
			cmds = append(cmds, a.updateViewportContent(a.viewport.AtBottom()))
		}
	}

	if a.busy() {
		var cmd tea.Cmd
		a.busySpinner, cmd = a.busySpinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a AppView) handleKey(msg tea.KeyMsg) (AppView, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a.quit()
	}

	if a.showAcknowledgeModal {
		if key == "enter" || key == "esc" {
			a.showAcknowledgeModal = false
		}
		return a, nil
	}

	if a.showHelp {
		if key == "esc" || key == a.kb.GetActionKey("help") {
			a.showHelp = false
			a.textarea.Focus()
		}
		return a, nil
	}

	if a.showSettings {
		return a.handleSettingsUpdate(msg)
	}

	if a.showSessionManager {
		return a.handleSessionManagerUpdate(msg)
	}

	if a.paste.Active {
		return a.handlePasteUpdate(msg)
	}

	if a.filePicker.Active {
		return a.handleFilePickerUpdate(msg)
	}

	switch key {
	case a.kb.GetActionKey("quit"):
		return a.quit()

	case a.kb.GetActionKey("help"):
		a.closeAllModals()
		a.showHelp = true
		return a, nil

	case a.kb.GetActionKey("settings"):
		return a.openSettings()

	case a.kb.GetActionKey("session_manager"):
		cmd := a.openSessionManager()
		return a, tea.Batch(cmd, a.busySpinner.Tick)

	case a.kb.GetActionKey("new_chat"):
		return a.startNewChat()

	case a.kb.GetActionKey("recheck_health"):
		return a.recheckHealth()
	}

	if !a.dataModel.HasSession() {
		if key == "enter" {
			return a.startNewChat()
		}
		return a, nil
	}

	switch key {
	case "enter":
		return a.sendMessage()

	case a.kb.GetActionKey("attach_file"):
		a.textarea.Blur()
		cmd := a.filePicker.Activate()
		return a, cmd

	case a.kb.GetActionKey("remove_attachment"):
		if n := len(a.attachments); n > 0 {
			a.attachments = a.attachments[:n-1]
		}
		return a, nil

	case a.kb.GetActionKey("paste_text"):
		return a.openPasteModal()

	case a.kb.GetActionKey("clear_input"):
		a.textarea.Reset()
		a.attachments = nil
		return a, nil

	case a.kb.GetActionKey("yank_last_response"):
		return a, a.copyLastResponse()

	case a.kb.GetActionKey("scroll_down"), a.kb.GetActionKey("scroll_down_arrow"):
		a.viewport.ScrollDown(1)
		return a, nil

	case a.kb.GetActionKey("scroll_up"), a.kb.GetActionKey("scroll_up_arrow"):
		a.viewport.ScrollUp(1)
		return a, nil

	case a.kb.GetActionKey("half_page_down"):
		a.viewport.HalfPageDown()
		return a, nil

	case a.kb.GetActionKey("half_page_up"):
		a.viewport.HalfPageUp()
		return a, nil

	case a.kb.GetActionKey("page_down"):
		a.viewport.PageDown()
		return a, nil

	case a.kb.GetActionKey("page_up"):
		a.viewport.PageUp()
		return a, nil

	case a.kb.GetActionKey("scroll_to_top"):
		a.viewport.GotoTop()
		return a, nil

	case a.kb.GetActionKey("scroll_to_bottom"):
		a.viewport.GotoBottom()
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a AppView) handleFilePickerUpdate(msg tea.KeyMsg) (AppView, tea.Cmd) {
	if msg.String() == "esc" {
		a.filePicker.Reset()
		a.textarea.Focus()
		return a, nil
	}

	path, cmd := a.filePicker.Update(msg)
	if path == "" {
		return a, cmd
	}

	if !api.IsSupportedFile(path) {
		a.filePicker.Rejected = filepath.Base(path)
		return a, cmd
	}

	logger.With("ui").Debug().Str("file", path).Msg("attachment queued")
	a.attachments = addAttachment(a.attachments, path)
	a.filePicker.Reset()
	a.textarea.Focus()
	return a, cmd
}

// sendMessage sends the composer text and queued attachments. Empty text
// with no attachments does nothing.
func (a AppView) sendMessage() (AppView, tea.Cmd) {
	content := strings.TrimSpace(a.textarea.Value())
	if content == "" && len(a.attachments) == 0 {
		return a, nil
	}
	if a.sending {
		return a, nil
	}

	files := a.attachments
	a.attachments = nil
	a.textarea.Reset()
	a.sending = true
	a.uploading = len(files)
	a.layout()
	refresh := a.updateViewportContent(true)

	return a, tea.Batch(
		a.dataModel.SendMessage(content, files),
		a.typingSpinner.Tick,
		refresh,
	)
}

func (a AppView) recheckHealth() (AppView, tea.Cmd) {
	if a.healthChecking {
		return a, nil
	}
	a.healthChecking = true
	return a, a.dataModel.CheckHealth()
}

func (a AppView) lastAssistantMessage() (api.Message, bool) {
	msgs := a.dataModel.CurrentMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == api.RoleAssistant {
			return msgs[i], true
		}
	}
	return api.Message{}, false
}

func (a AppView) copyLastResponse() tea.Cmd {
	msg, ok := a.lastAssistantMessage()
	if !ok {
		return nil
	}
	content := msg.Content
	return func() tea.Msg {
		return clipboardMsg{Err: clipboard.WriteAll(content)}
	}
}

func (a AppView) quit() (AppView, tea.Cmd) {
	logger.With("ui").Info().Msg("quitting")
	a.Close()
	return a, tea.Sequence(a.dataModel.PersistSnapshot(), tea.Quit)
}
