package cache

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"djrag/api"
)

type MessageLister interface {
	ListMessages(ctx context.Context, sessionID string) ([]api.Message, error)
}

// MessageCache holds one message list per session.
type MessageCache struct {
	store *Store[[]api.Message]
}

func NewMessageCache(client MessageLister) *MessageCache {
	return &MessageCache{
		store: NewStore(func(ctx context.Context, key string) ([]api.Message, error) {
			id, err := SessionIDFromKey(key)
			if err != nil {
				return nil, err
			}
			return client.ListMessages(ctx, id)
		}),
	}
}

func MessagesKey(sessionID string) string {
	return api.MessagesPath(sessionID)
}

// SessionIDFromKey is the inverse of MessagesKey.
func SessionIDFromKey(key string) (string, error) {
	rest, ok := strings.CutPrefix(key, "/sessions/")
	if !ok {
		return "", fmt.Errorf("not a message key: %q", key)
	}
	escaped, ok := strings.CutSuffix(rest, "/messages")
	if !ok || escaped == "" {
		return "", fmt.Errorf("not a message key: %q", key)
	}
	return url.PathUnescape(escaped)
}

func (c *MessageCache) Get(ctx context.Context, sessionID string) ([]api.Message, error) {
	return c.store.Get(ctx, MessagesKey(sessionID))
}

// Messages returns the cached list, never nil.
func (c *MessageCache) Messages(sessionID string) []api.Message {
	msgs := c.store.Peek(MessagesKey(sessionID)).Data
	if msgs == nil {
		return []api.Message{}
	}
	return msgs
}

func (c *MessageCache) State(sessionID string) Entry[[]api.Message] {
	return c.store.Peek(MessagesKey(sessionID))
}

func (c *MessageCache) Revalidate(ctx context.Context, sessionID string) ([]api.Message, error) {
	return c.store.Revalidate(ctx, MessagesKey(sessionID))
}

// Append adds msgs to the end of the local list without asking the server.
func (c *MessageCache) Append(sessionID string, msgs ...api.Message) []api.Message {
	next, _ := c.store.Mutate(context.Background(), MessagesKey(sessionID), func(cur []api.Message) []api.Message {
		return append(slices.Clip(cur), msgs...)
	}, false)
	return next
}

// Rollback discards local changes by re-fetching the server's list.
func (c *MessageCache) Rollback(ctx context.Context, sessionID string) ([]api.Message, error) {
	return c.store.Reload(ctx, MessagesKey(sessionID))
}

// Seed sets the list for a session without fetching. A nil list seeds an
// empty history, which is what a freshly created session has.
func (c *MessageCache) Seed(sessionID string, msgs []api.Message) {
	if msgs == nil {
		msgs = []api.Message{}
	}
	c.store.Set(MessagesKey(sessionID), msgs)
}

func (c *MessageCache) Forget(sessionID string) {
	c.store.Delete(MessagesKey(sessionID))
}

func (c *MessageCache) ForgetAll() {
	c.store.Clear()
}

// All returns every cached list keyed by session ID.
func (c *MessageCache) All() map[string][]api.Message {
	out := make(map[string][]api.Message)
	for key, msgs := range c.store.Snapshot() {
		id, err := SessionIDFromKey(key)
		if err != nil {
			continue
		}
		out[id] = msgs
	}
	return out
}

func (c *MessageCache) Subscribe() (<-chan string, func()) {
	return c.store.Subscribe()
}
