package model

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// FetchSessions refreshes the session list.
func (m *Model) FetchSessions() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		sessions, err := m.RefreshSessions(ctx)
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

// ResumeSessions refreshes the session list once at startup.
func (m *Model) ResumeSessions() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := m.Resume(ctx)
		return SessionsLoadedMsg{Sessions: m.Sessions.Sessions(), Err: err}
	}
}

// FetchMessages refreshes the history of one session.
func (m *Model) FetchMessages(sessionID string) tea.Cmd {
	if sessionID == "" {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		msgs, err := m.LoadMessages(ctx, sessionID)
		return MessagesLoadedMsg{SessionID: sessionID, Messages: msgs, Err: err}
	}
}

func (m *Model) CreateSession() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		sess, err := m.NewChat(ctx)
		return SessionCreatedMsg{Session: sess, Err: err}
	}
}

func (m *Model) RemoveSession(sessionID string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		wasCurrent, err := m.DeleteSession(ctx, sessionID)
		return SessionDeletedMsg{SessionID: sessionID, WasCurrent: wasCurrent, Err: err}
	}
}

func (m *Model) RemoveAllSessions() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return AllSessionsDeletedMsg{Err: m.DeleteAllSessions(ctx)}
	}
}

// SendMessage runs Send with a copy of files.
func (m *Model) SendMessage(content string, files []string) tea.Cmd {
	ctx := m.ctx
	files = append([]string(nil), files...)
	return func() tea.Msg {
		result, err := m.Send(ctx, content, files)
		return SendCompleteMsg{Result: result, Err: err}
	}
}

func (m *Model) IngestPastedText(text, title string) tea.Cmd {
	ctx := m.ctx
	sessionID := m.CurrentSessionID()
	return func() tea.Msg {
		var err error
		if sessionID == "" {
			err = ErrNoSession
		} else {
			err = m.IngestTextInto(ctx, sessionID, text, title)
		}
		return IngestCompleteMsg{SessionID: sessionID, Title: title, Err: err}
	}
}

// CheckHealth runs a manual probe.
func (m *Model) CheckHealth() tea.Cmd {
	if m.Health == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return HealthMsg{Status: m.Health.Check(ctx), Manual: true}
	}
}

// WaitForHealth delivers the next status published by the poller.
func (m *Model) WaitForHealth() tea.Cmd {
	if m.Health == nil {
		return nil
	}
	updates := m.Health.Updates()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case s := <-updates:
			return HealthMsg{Status: s}
		case <-ctx.Done():
			return nil
		}
	}
}

// HealthSettled fires after delay so the view can drop its checking marker.
func HealthSettled(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return HealthSettledMsg{}
	})
}

// WaitForCacheChange delivers the next key from a cache subscription.
func WaitForCacheChange(changes <-chan string) tea.Cmd {
	return func() tea.Msg {
		key, ok := <-changes
		if !ok {
			return nil
		}
		return CacheChangedMsg{Key: key}
	}
}

// PersistSnapshot writes the caches to disk.
func (m *Model) PersistSnapshot() tea.Cmd {
	return func() tea.Msg {
		return PersistedMsg{Err: m.Persist()}
	}
}

func FlashTick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg {
		return FlashTickMsg{}
	})
}
