package model

import (
	"context"

	"djrag/logger"
)

// Restore seeds the caches from the last snapshot so there is something to
// show before the backend answers. Nothing restored is treated as fresh.
func (m *Model) Restore() error {
	if m.Snapshot == nil {
		return nil
	}

	sessions, err := m.Snapshot.LoadSessions()
	if err != nil {
		return err
	}
	if len(sessions) > 0 {
		m.Sessions.Seed(sessions)
	}

	all, err := m.Snapshot.LoadAllMessages()
	if err != nil {
		return err
	}
	for id, msgs := range all {
		m.Messages.Seed(id, msgs)
	}

	current, err := m.Snapshot.LoadCurrentSessionID()
	if err != nil {
		return err
	}
	if _, ok := m.Sessions.Find(current); ok {
		m.setCurrent(current)
	}

	logger.With("model").Debug().
		Int("sessions", len(sessions)).
		Int("histories", len(all)).
		Str("current", m.CurrentSessionID()).
		Msg("restored snapshot")
	return nil
}

// Resume refreshes the session list after Restore and drops the remembered
// session if the backend no longer has it.
func (m *Model) Resume(ctx context.Context) error {
	sessions, err := m.RefreshSessions(ctx)
	if err != nil {
		return err
	}

	current := m.CurrentSessionID()
	if current == "" {
		return nil
	}
	for _, s := range sessions {
		if s.ID == current {
			return nil
		}
	}
	m.clearCurrentIf(current)
	logger.With("model").Info().Str("session", current).Msg("remembered session is gone")
	return nil
}

// Persist writes the caches and the current session to the snapshot.
func (m *Model) Persist() error {
	if m.Snapshot == nil {
		return nil
	}

	if err := m.Snapshot.Clear(); err != nil {
		return err
	}
	if state := m.Sessions.State(); state.Valid {
		if err := m.Snapshot.SaveSessions(state.Data); err != nil {
			return err
		}
	}
	for id, msgs := range m.Messages.All() {
		if err := m.Snapshot.SaveMessages(id, msgs); err != nil {
			return err
		}
	}
	return m.Snapshot.SaveCurrentSessionID(m.CurrentSessionID())
}
