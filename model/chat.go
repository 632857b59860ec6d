package model

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"djrag/api"
	"djrag/logger"
)

type UploadFailure struct {
	Path string
	Err  error
}

// SendResult describes what one Send did.
type SendResult struct {
	SessionID string
	Created   bool // the session was created for this send
	Uploaded  []string
	Failed    []UploadFailure
	Reply     *api.Message
	AskErr    error // the question itself failed
}

// Send uploads files to the current session and then asks content, creating
// a session first when there is none. A failed upload is skipped. A failed
// question rolls the history back to what the server has. The first error
// met is returned alongside whatever did succeed.
func (m *Model) Send(ctx context.Context, content string, files []string) (SendResult, error) {
	log := logger.With("model")
	var result SendResult

	if strings.TrimSpace(content) == "" && len(files) == 0 {
		return result, nil
	}

	m.mu.Lock()
	if m.sending {
		m.mu.Unlock()
		return result, ErrSendInFlight
	}
	m.sending = true
	sessionID := m.currentID
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.sending = false
		m.mu.Unlock()
	}()

	if sessionID == "" {
		sess, err := m.createSession(ctx)
		if err != nil {
			return result, err
		}
		sessionID = sess.ID
		result.Created = true
	}
	result.SessionID = sessionID

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, path := range files {
		if _, err := m.Client.UploadFile(ctx, sessionID, path); err != nil {
			log.Error().Err(err).Str("session", sessionID).Str("file", path).Msg("failed to upload file")
			result.Failed = append(result.Failed, UploadFailure{Path: path, Err: err})
			keep(fmt.Errorf("upload %s: %w", filepath.Base(path), err))
			continue
		}
		result.Uploaded = append(result.Uploaded, path)
		log.Info().Str("session", sessionID).Str("file", path).Msg("file uploaded")

		// The backend retitles the session after the first document.
		if _, err := m.Sessions.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to refresh sessions after upload")
		}
	}

	if strings.TrimSpace(content) == "" {
		return result, firstErr
	}

	sent := m.now()
	m.Messages.Append(sessionID, api.Message{
		ID:        m.nextMessageID(sent),
		Role:      api.RoleUser,
		Content:   content,
		CreatedAt: api.NewTimestamp(sent),
	})

	resp, err := m.Client.SendMessage(ctx, sessionID, content)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to send message")
		if _, rerr := m.Messages.Rollback(ctx, sessionID); rerr != nil {
			log.Warn().Err(rerr).Str("session", sessionID).Msg("failed to roll back messages")
		}
		result.AskErr = err
		keep(err)
		return result, firstErr
	}

	reply := api.Message{
		ID:        m.nextMessageID(sent),
		Role:      api.RoleAssistant,
		Content:   resp.Answer,
		Sources:   resp.Sources,
		Metrics:   resp.Metrics,
		CreatedAt: api.NewTimestamp(m.now()),
	}
	m.Messages.Append(sessionID, reply)
	result.Reply = &reply

	return result, firstErr
}

// IngestText adds pasted text to the current session's corpus and posts a
// notice into its history.
func (m *Model) IngestText(ctx context.Context, text, title string) error {
	sessionID := m.CurrentSessionID()
	if sessionID == "" {
		return ErrNoSession
	}
	return m.IngestTextInto(ctx, sessionID, text, title)
}

// IngestTextInto is IngestText for an explicit session.
func (m *Model) IngestTextInto(ctx context.Context, sessionID, text, title string) error {
	log := logger.With("model")

	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if strings.TrimSpace(title) == "" {
		title = api.DefaultIngestTitle
	}

	if _, err := m.Client.IngestText(ctx, sessionID, text, title); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to ingest text")
		return err
	}

	if _, err := m.Sessions.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh sessions after ingest")
	}

	now := m.now()
	m.Messages.Append(sessionID, api.Message{
		ID:        m.nextMessageID(now),
		Role:      api.RoleAssistant,
		Content:   IngestNotice,
		CreatedAt: api.NewTimestamp(now),
	})

	log.Info().Str("session", sessionID).Str("title", title).Int("bytes", len(text)).Msg("text ingested")
	return nil
}
