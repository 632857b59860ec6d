package model

import (
	"context"

	"djrag/api"
	"djrag/logger"
)

// NewChat creates an empty session and makes it current.
func (m *Model) NewChat(ctx context.Context) (api.Session, error) {
	m.mu.Lock()
	if m.creating {
		m.mu.Unlock()
		return api.Session{}, ErrCreateInFlight
	}
	m.creating = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.creating = false
		m.mu.Unlock()
	}()

	sess, err := m.createSession(ctx)
	if err != nil {
		return api.Session{}, err
	}
	return *sess, nil
}

func (m *Model) createSession(ctx context.Context) (*api.Session, error) {
	log := logger.With("model")

	sess, err := m.Client.CreateSession(ctx, api.DefaultSessionTitle)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		return nil, err
	}

	if _, err := m.Sessions.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh sessions after create")
	}
	m.Messages.Seed(sess.ID, nil)
	m.setCurrent(sess.ID)

	log.Info().Str("session", sess.ID).Msg("session created")
	return sess, nil
}

// SelectSession makes id current. The cached history, possibly stale, is
// shown right away; LoadMessages brings it up to date.
func (m *Model) SelectSession(id string) {
	m.setCurrent(id)
}

// ClearSession returns to the session-less view.
func (m *Model) ClearSession() {
	m.setCurrent("")
}

// RefreshSessions re-fetches the session list.
func (m *Model) RefreshSessions(ctx context.Context) ([]api.Session, error) {
	sessions, err := m.Sessions.Revalidate(ctx)
	if err != nil {
		logger.With("model").Warn().Err(err).Msg("failed to load sessions")
	}
	return sessions, err
}

// LoadMessages re-fetches the history of one session.
func (m *Model) LoadMessages(ctx context.Context, sessionID string) ([]api.Message, error) {
	msgs, err := m.Messages.Revalidate(ctx, sessionID)
	if err != nil {
		logger.With("model").Warn().Err(err).Str("session", sessionID).Msg("failed to load messages")
	}
	return msgs, err
}

// DeleteSession removes a session remotely and locally. It reports whether
// the deleted session was the current one.
func (m *Model) DeleteSession(ctx context.Context, id string) (bool, error) {
	log := logger.With("model")

	if err := m.Client.DeleteSession(ctx, id); err != nil {
		log.Error().Err(err).Str("session", id).Msg("failed to delete session")
		return false, err
	}

	if _, err := m.Sessions.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh sessions after delete")
	}
	m.Messages.Forget(id)
	wasCurrent := m.clearCurrentIf(id)

	if m.Snapshot != nil {
		if err := m.Snapshot.DeleteSession(id); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to drop session from snapshot")
		}
	}

	log.Info().Str("session", id).Bool("current", wasCurrent).Msg("session deleted")
	return wasCurrent, nil
}

// DeleteAllSessions removes every session and clears the current one.
func (m *Model) DeleteAllSessions(ctx context.Context) error {
	log := logger.With("model")

	if err := m.Client.DeleteAllSessions(ctx); err != nil {
		log.Error().Err(err).Msg("failed to delete all sessions")
		return err
	}

	if _, err := m.Sessions.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh sessions after delete all")
	}
	m.Messages.ForgetAll()
	m.setCurrent("")

	if m.Snapshot != nil {
		if err := m.Snapshot.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear snapshot")
		}
	}

	log.Info().Msg("all sessions deleted")
	return nil
}
