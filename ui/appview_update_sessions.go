package ui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"djrag/cache"
	"djrag/logger"
	appmodel "djrag/model"
)

// handleModelMessage applies results of model commands. handled is false
// for messages it does not know.
func (a AppView) handleModelMessage(msg tea.Msg) (AppView, tea.Cmd, bool) {
	log := logger.With("ui")

	switch msg := msg.(type) {
	case sessionsLoadedMsg:
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Msg("failed to load sessions")
		}
		a.clampSessionSelection()
		cmd := a.updateViewportContent(false)
		return a, cmd, true

	case messagesLoadedMsg:
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Str("session", msg.SessionID).Msg("failed to load messages")
		}
		if msg.SessionID != a.dataModel.CurrentSessionID() {
			return a, nil, true
		}
		cmd := a.updateViewportContent(true)
		return a, cmd, true

	case sessionCreatedMsg:
		a.creating = false
		if msg.Err != nil {
			if errors.Is(msg.Err, appmodel.ErrCreateInFlight) {
				return a, nil, true
			}
			a.showError("Could Not Start Chat", msg.Err)
			return a, nil, true
		}
		a.attachments = nil
		a.textarea.Reset()
		a.textarea.Focus()
		a.layout()
		cmd := a.updateViewportContent(true)
		return a, cmd, true

	case sessionDeletedMsg:
		delete(a.deletingSessions, msg.SessionID)
		if msg.Err != nil {
			a.showError("Could Not Delete Chat", msg.Err)
			return a, nil, true
		}
		if msg.WasCurrent {
			a.attachments = nil
			a.textarea.Reset()
		}
		a.clampSessionSelection()
		a.layout()
		cmd := a.updateViewportContent(true)
		return a, cmd, true

	case allSessionsDeletedMsg:
		a.clearingAll = false
		if msg.Err != nil {
			a.showError("Could Not Clear Chats", msg.Err)
			return a, nil, true
		}
		a.closeAllModals()
		a.attachments = nil
		a.textarea.Reset()
		a.selectedSessionIdx = 0
		a.layout()
		cmd := a.updateViewportContent(true)
		cmd = tea.Batch(cmd, a.flash("All chats cleared"))
		return a, cmd, true

	case sendCompleteMsg:
		return a.handleSendComplete(msg)

	case ingestCompleteMsg:
		a.paste.Ingesting = false
		if msg.Err != nil {
			a.paste.Err = msg.Err.Error()
			return a, nil, true
		}
		a.paste.Close()
		a.textarea.Focus()
		cmd := a.updateViewportContent(true)
		cmd = tea.Batch(cmd, a.flash("Text ingested"))
		return a, cmd, true

	case healthMsg:
		a.healthStatus = msg.Status
		cmds := []tea.Cmd{appmodel.HealthSettled(a.settleDelay())}
		if !msg.Manual {
			cmds = append(cmds, a.dataModel.WaitForHealth())
		}
		return a, tea.Batch(cmds...), true

	case healthSettledMsg:
		a.healthChecking = false
		return a, nil, true

	case cacheChangedMsg:
		return a.handleCacheChange(msg)

	case markdownRenderedMsg:
		delete(a.rendering, renderKey{id: msg.MessageID, width: msg.Width})
		a.rendered[msg.MessageID] = renderedMarkdown{width: msg.Width, content: msg.Content, out: msg.Rendered}
		atBottom := a.viewport.AtBottom()
		cmd := a.updateViewportContent(atBottom)
		return a, cmd, true

	case clipboardMsg:
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Msg("clipboard write failed")
			cmd := a.flash("Copy failed: " + msg.Err.Error())
			return a, cmd, true
		}
		cmd := a.flash("Copied last response to clipboard")
		return a, cmd, true

	case flashTickMsg:
		if a.flashTicks > 0 {
			a.flashTicks--
		}
		if a.flashTicks == 0 {
			a.flashMessage = ""
			return a, nil, true
		}
		return a, appmodel.FlashTick(), true

	case appmodel.PersistedMsg:
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Msg("failed to persist snapshot")
		}
		return a, nil, true
	}

	return a, nil, false
}

func (a AppView) settleDelay() time.Duration {
	if a.dataModel.Health == nil {
		return 0
	}
	return a.dataModel.Health.SettleDelay()
}

func (a AppView) handleCacheChange(msg cacheChangedMsg) (AppView, tea.Cmd, bool) {
	if msg.Key == a.dataModel.Sessions.Key() {
		a.clampSessionSelection()
		return a, appmodel.WaitForCacheChange(a.subs.sessions), true
	}

	cmds := []tea.Cmd{appmodel.WaitForCacheChange(a.subs.messages)}
	if id, err := cache.SessionIDFromKey(msg.Key); err == nil && id == a.dataModel.CurrentSessionID() {
		cmds = append(cmds, a.updateViewportContent(true))
	}
	return a, tea.Batch(cmds...), true
}

func (a AppView) handleSendComplete(msg sendCompleteMsg) (AppView, tea.Cmd, bool) {
	a.sending = false
	a.uploading = 0

	result := msg.Result
	cmd := a.updateViewportContent(true)

	if errors.Is(msg.Err, appmodel.ErrSendInFlight) {
		return a, cmd, true
	}

	// Upload errors come first, so they are reported together.
	if len(result.Failed) > 0 {
		var lines []string
		for _, f := range result.Failed {
			lines = append(lines, fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err))
		}
		if result.AskErr != nil {
			lines = append(lines, "", "Message failed: "+result.AskErr.Error())
		}
		a.showAcknowledgeModal = true
		a.acknowledgeModalTitle = "Some Files Were Not Uploaded"
		a.acknowledgeModalMsg = strings.Join(lines, "\n")
		a.acknowledgeModalType = ModalTypeWarning
		return a, cmd, true
	}

	if msg.Err != nil {
		a.showError("Message Failed", msg.Err)
	}

	return a, cmd, true
}
