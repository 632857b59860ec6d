package model

import (
	"djrag/api"
	"djrag/health"
)

type SessionsLoadedMsg struct {
	Sessions []api.Session
	Err      error
}

type MessagesLoadedMsg struct {
	SessionID string
	Messages  []api.Message
	Err       error
}

type SessionCreatedMsg struct {
	Session api.Session
	Err     error
}

type SessionDeletedMsg struct {
	SessionID  string
	WasCurrent bool
	Err        error
}

type AllSessionsDeletedMsg struct {
	Err error
}

type SendCompleteMsg struct {
	Result SendResult
	Err    error
}

type IngestCompleteMsg struct {
	SessionID string
	Title     string
	Err       error
}

type HealthMsg struct {
	Status health.Status
	// Manual is set for the result of CheckHealth, which does not consume
	// the poller's update channel.
	Manual bool
}

// HealthSettledMsg fires once the post-probe settle delay has passed.
type HealthSettledMsg struct{}

// CacheChangedMsg carries the key of a cache entry that changed.
type CacheChangedMsg struct {
	Key string
}

type MarkdownRenderedMsg struct {
	MessageID int64
	Width     int
	Content   string
	Rendered  string
}

type ClipboardMsg struct {
	Err error
}

type FlashTickMsg struct{}

type PersistedMsg struct {
	Err error
}
