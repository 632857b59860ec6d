package ui

import (
	"djrag/model"
)

type sessionsLoadedMsg = model.SessionsLoadedMsg
type messagesLoadedMsg = model.MessagesLoadedMsg
type sessionCreatedMsg = model.SessionCreatedMsg
type sessionDeletedMsg = model.SessionDeletedMsg
type allSessionsDeletedMsg = model.AllSessionsDeletedMsg
type sendCompleteMsg = model.SendCompleteMsg
type ingestCompleteMsg = model.IngestCompleteMsg
type healthMsg = model.HealthMsg
type healthSettledMsg = model.HealthSettledMsg
type cacheChangedMsg = model.CacheChangedMsg
type markdownRenderedMsg = model.MarkdownRenderedMsg
type clipboardMsg = model.ClipboardMsg
type flashTickMsg = model.FlashTickMsg
