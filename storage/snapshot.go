// Package storage keeps an on-disk snapshot of the last known sessions and
// messages so the interface has something to show before the backend
// answers. The backend stays authoritative.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"djrag/api"
)

const (
	snapshotFile = "cache.db"

	keyCurrentSession = "current_session_id"
)

type SnapshotStore struct {
	db   *sql.DB
	path string
}

func NewSnapshotStore(dataDir string) (*SnapshotStore, error) {
	dbPath := filepath.Join(dataDir, snapshotFile)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}

	s := &SnapshotStore{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot database: %w", err)
	}

	return s, nil
}

func (s *SnapshotStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		file_name TEXT,
		created_at TEXT
	);
	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		sources TEXT,
		metrics TEXT,
		created_at TEXT,
		PRIMARY KEY (session_id, position)
	);
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path is the database file location.
func (s *SnapshotStore) Path() string {
	return s.path
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// SaveSessions replaces the stored session list, keeping its order.
func (s *SnapshotStore) SaveSessions(sessions []api.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO sessions (id, position, title, file_name, created_at)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, sess := range sessions {
		var fileName sql.NullString
		if sess.FileName != nil {
			fileName = sql.NullString{String: *sess.FileName, Valid: true}
		}
		if _, err := stmt.Exec(sess.ID, i, sess.Title, fileName, formatTime(sess.CreatedAt)); err != nil {
			return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SnapshotStore) LoadSessions() ([]api.Session, error) {
	rows, err := s.db.Query(`
	SELECT id, title, file_name, created_at
	FROM sessions
	ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []api.Session{}
	for rows.Next() {
		var (
			sess      api.Session
			fileName  sql.NullString
			createdAt sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.Title, &fileName, &createdAt); err != nil {
			return nil, err
		}
		if fileName.Valid {
			name := fileName.String
			sess.FileName = &name
		}
		sess.CreatedAt = parseTime(createdAt)
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// SaveMessages replaces the stored history of one session.
func (s *SnapshotStore) SaveMessages(sessionID string, msgs []api.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO messages (session_id, position, id, role, content, sources, metrics, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, msg := range msgs {
		sources, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}

		var metrics sql.NullString
		if msg.Metrics != nil {
			data, err := json.Marshal(msg.Metrics)
			if err != nil {
				return fmt.Errorf("failed to encode metrics: %w", err)
			}
			metrics = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := stmt.Exec(sessionID, i, msg.ID, msg.Role, msg.Content, string(sources), metrics, formatTime(msg.CreatedAt)); err != nil {
			return fmt.Errorf("failed to save message %d: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

// LoadMessages returns the stored history of one session. A session with
// no stored history yields an empty slice.
func (s *SnapshotStore) LoadMessages(sessionID string) ([]api.Message, error) {
	all, err := s.loadMessages(`WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	msgs := all[sessionID]
	if msgs == nil {
		msgs = []api.Message{}
	}
	return msgs, nil
}

// LoadAllMessages returns every stored history keyed by session ID.
func (s *SnapshotStore) LoadAllMessages() (map[string][]api.Message, error) {
	return s.loadMessages("")
}

func (s *SnapshotStore) loadMessages(where string, args ...any) (map[string][]api.Message, error) {
	rows, err := s.db.Query(`
	SELECT session_id, id, role, content, sources, metrics, created_at
	FROM messages
	`+where+`
	ORDER BY session_id, position
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]api.Message)
	for rows.Next() {
		var (
			sessionID string
			msg       api.Message
			sources   sql.NullString
			metrics   sql.NullString
			createdAt sql.NullString
		)
		if err := rows.Scan(&sessionID, &msg.ID, &msg.Role, &msg.Content, &sources, &metrics, &createdAt); err != nil {
			return nil, err
		}

		if sources.Valid && sources.String != "" && sources.String != "null" {
			if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources for message %d: %w", msg.ID, err)
			}
		}
		if metrics.Valid {
			var m api.Metrics
			if err := json.Unmarshal([]byte(metrics.String), &m); err != nil {
				return nil, fmt.Errorf("failed to decode metrics for message %d: %w", msg.ID, err)
			}
			msg.Metrics = &m
		}
		msg.CreatedAt = parseTime(createdAt)

		out[sessionID] = append(out[sessionID], msg)
	}

	return out, rows.Err()
}

// DeleteSession drops a session and its history.
func (s *SnapshotStore) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM state WHERE key = ? AND value = ?`, keyCurrentSession, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

// Clear empties the snapshot.
func (s *SnapshotStore) Clear() error {
	_, err := s.db.Exec(`
	DELETE FROM sessions;
	DELETE FROM messages;
	DELETE FROM state;
	`)
	return err
}

// SaveCurrentSessionID remembers the selected session. An empty id forgets it.
func (s *SnapshotStore) SaveCurrentSessionID(id string) error {
	if id == "" {
		_, err := s.db.Exec(`DELETE FROM state WHERE key = ?`, keyCurrentSession)
		return err
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, keyCurrentSession, id)
	return err
}

// LoadCurrentSessionID returns "" when no session was remembered.
func (s *SnapshotStore) LoadCurrentSessionID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, keyCurrentSession).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func formatTime(t api.Timestamp) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) api.Timestamp {
	if !s.Valid {
		return api.Timestamp{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return api.Timestamp{}
	}
	return api.NewTimestamp(t)
}
