// Package model holds the session and message state behind the chat
// interface. Operations are synchronous and safe for concurrent use; the UI
// runs them inside tea.Cmds.
package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"djrag/api"
	"djrag/cache"
	"djrag/config"
	"djrag/health"
)

var (
	ErrSendInFlight   = errors.New("a message is already being sent")
	ErrCreateInFlight = errors.New("a session is already being created")
	ErrNoSession      = errors.New("no session selected")
	ErrEmptyText      = errors.New("text is empty")
)

// IngestNotice is appended to the history after pasted text is ingested.
const IngestNotice = "**System**: Text ingested successfully. You can now ask questions about it."

// Backend is the subset of *api.Client the model drives.
type Backend interface {
	CreateSession(ctx context.Context, title string) (*api.Session, error)
	ListSessions(ctx context.Context) ([]api.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteAllSessions(ctx context.Context) error
	ListMessages(ctx context.Context, sessionID string) ([]api.Message, error)
	SendMessage(ctx context.Context, sessionID, question string) (*api.ChatResponse, error)
	UploadFile(ctx context.Context, sessionID, path string) (api.IngestResult, error)
	IngestText(ctx context.Context, sessionID, text, title string) (api.IngestResult, error)
}

// Snapshotter persists cache contents between runs. *storage.SnapshotStore
// implements it.
type Snapshotter interface {
	SaveSessions(sessions []api.Session) error
	LoadSessions() ([]api.Session, error)
	SaveMessages(sessionID string, msgs []api.Message) error
	LoadAllMessages() (map[string][]api.Message, error)
	DeleteSession(sessionID string) error
	Clear() error
	SaveCurrentSessionID(id string) error
	LoadCurrentSessionID() (string, error)
}

type Model struct {
	Config   *config.Config
	Client   Backend
	Sessions *cache.SessionCache
	Messages *cache.MessageCache
	Health   *health.Poller
	Snapshot Snapshotter // may be nil

	Version string

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	mu        sync.Mutex
	currentID string
	sending   bool
	creating  bool
	lastMsgID int64
}

func NewModel(cfg *config.Config, client Backend, poller *health.Poller, snapshot Snapshotter, version string) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		Config:   cfg,
		Client:   client,
		Sessions: cache.NewSessionCache(client),
		Messages: cache.NewMessageCache(client),
		Health:   poller,
		Snapshot: snapshot,
		Version:  version,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Context is cancelled by Shutdown. Commands started by the UI use it.
func (m *Model) Context() context.Context {
	return m.ctx
}

func (m *Model) Shutdown() {
	m.cancel()
}

func (m *Model) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// CurrentSession looks the current session up in the cached list. The
// second result is false when there is no current session or the list has
// not caught up with it yet.
func (m *Model) CurrentSession() (api.Session, bool) {
	id := m.CurrentSessionID()
	if id == "" {
		return api.Session{}, false
	}
	return m.Sessions.Find(id)
}

func (m *Model) HasSession() bool {
	return m.CurrentSessionID() != ""
}

func (m *Model) Sending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending
}

func (m *Model) Creating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creating
}

// CurrentMessages is the cached history of the current session, never nil.
func (m *Model) CurrentMessages() []api.Message {
	id := m.CurrentSessionID()
	if id == "" {
		return []api.Message{}
	}
	return m.Messages.Messages(id)
}

func (m *Model) setCurrent(id string) {
	m.mu.Lock()
	m.currentID = id
	m.mu.Unlock()
}

// clearCurrentIf clears the current session when it is id and reports
// whether it did.
func (m *Model) clearCurrentIf(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentID != id {
		return false
	}
	m.currentID = ""
	return true
}

// nextMessageID returns an ID for a locally appended message. IDs start
// from the clock in milliseconds and never repeat within a run.
func (m *Model) nextMessageID(t time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := t.UnixMilli()
	if id <= m.lastMsgID {
		id = m.lastMsgID + 1
	}
	m.lastMsgID = id
	return id
}
