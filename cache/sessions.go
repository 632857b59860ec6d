package cache

import (
	"context"

	"djrag/api"
)

type SessionLister interface {
	ListSessions(ctx context.Context) ([]api.Session, error)
}

// SessionCache caches the session list under a single key.
type SessionCache struct {
	store *Store[[]api.Session]
}

func NewSessionCache(client SessionLister) *SessionCache {
	return &SessionCache{
		store: NewStore(func(ctx context.Context, _ string) ([]api.Session, error) {
			return client.ListSessions(ctx)
		}),
	}
}

func (c *SessionCache) Key() string {
	return api.SessionsPath()
}

// Sessions returns the cached list, never nil.
func (c *SessionCache) Sessions() []api.Session {
	sessions := c.store.Peek(c.Key()).Data
	if sessions == nil {
		return []api.Session{}
	}
	return sessions
}

func (c *SessionCache) Find(id string) (api.Session, bool) {
	for _, s := range c.Sessions() {
		if s.ID == id {
			return s, true
		}
	}
	return api.Session{}, false
}

func (c *SessionCache) Get(ctx context.Context) ([]api.Session, error) {
	return c.store.Get(ctx, c.Key())
}

func (c *SessionCache) Revalidate(ctx context.Context) ([]api.Session, error) {
	return c.store.Revalidate(ctx, c.Key())
}

// Reload re-fetches the list after a write, ignoring any fetch that was
// already in flight.
func (c *SessionCache) Reload(ctx context.Context) ([]api.Session, error) {
	return c.store.Reload(ctx, c.Key())
}

func (c *SessionCache) State() Entry[[]api.Session] {
	return c.store.Peek(c.Key())
}

// Seed fills the list from a local snapshot without marking it fresh.
func (c *SessionCache) Seed(sessions []api.Session) {
	c.store.Set(c.Key(), sessions)
}

func (c *SessionCache) Subscribe() (<-chan string, func()) {
	return c.store.Subscribe()
}
