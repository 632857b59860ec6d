package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djrag/api"
	"djrag/config"
	"djrag/health"
	appmodel "djrag/model"
)

// stubBackend answers every call from memory.
type stubBackend struct {
	sessions []api.Session
}

func (s *stubBackend) CreateSession(ctx context.Context, title string) (*api.Session, error) {
	sess := api.Session{ID: "new", Title: title, CreatedAt: api.NewTimestamp(time.Now())}
	s.sessions = append([]api.Session{sess}, s.sessions...)
	return &sess, nil
}

func (s *stubBackend) ListSessions(ctx context.Context) ([]api.Session, error) {
	return s.sessions, nil
}

func (s *stubBackend) DeleteSession(ctx context.Context, sessionID string) error { return nil }

func (s *stubBackend) DeleteAllSessions(ctx context.Context) error { return nil }

func (s *stubBackend) ListMessages(ctx context.Context, sessionID string) ([]api.Message, error) {
	return nil, nil
}

func (s *stubBackend) SendMessage(ctx context.Context, sessionID, question string) (*api.ChatResponse, error) {
	return &api.ChatResponse{Answer: "ok"}, nil
}

func (s *stubBackend) UploadFile(ctx context.Context, sessionID, path string) (api.IngestResult, error) {
	return api.IngestResult{}, nil
}

func (s *stubBackend) IngestText(ctx context.Context, sessionID, text, title string) (api.IngestResult, error) {
	return api.IngestResult{}, nil
}

func newTestView(t *testing.T, sessions ...api.Session) AppView {
	t.Helper()

	m := appmodel.NewModel(config.Default(), &stubBackend{sessions: sessions}, nil, nil, "test")
	t.Cleanup(m.Shutdown)
	if len(sessions) > 0 {
		m.Sessions.Seed(sessions)
	}

	a := NewAppView(m)
	t.Cleanup(a.Close)
	return update(t, a, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func withCurrentSession(t *testing.T, msgs ...api.Message) AppView {
	t.Helper()
	sess := api.Session{ID: "s1", Title: "Quarterly report", CreatedAt: api.NewTimestamp(time.Now())}
	a := newTestView(t, sess)
	a.dataModel.Messages.Seed(sess.ID, msgs)
	a.dataModel.SelectSession(sess.ID)
	return update(t, a, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, a AppView, msg tea.Msg) AppView {
	t.Helper()
	next, _ := a.Update(msg)
	view, ok := next.(AppView)
	require.True(t, ok)
	return view
}

func alt(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestSessionlessViewShowsWelcome(t *testing.T) {
	a := newTestView(t)

	view := a.View()
	assert.Contains(t, view, "Your intelligent document assistant")
	assert.Contains(t, view, "Start New Chat")
}

func TestNewChatShowsCreatingState(t *testing.T) {
	a := newTestView(t)

	a, cmd := a.startNewChat()
	require.NotNil(t, cmd)
	assert.True(t, a.creating)
	assert.Contains(t, a.View(), "Creating...")

	a = update(t, a, appmodel.SessionCreatedMsg{Session: api.Session{ID: "new"}})
	assert.False(t, a.creating)
}

func TestSessionCreateErrorShowsModal(t *testing.T) {
	a := newTestView(t)
	a.creating = true

	a = update(t, a, appmodel.SessionCreatedMsg{Err: errors.New("boom")})

	assert.False(t, a.creating)
	assert.True(t, a.showAcknowledgeModal)
	assert.Contains(t, a.View(), "boom")

	a = update(t, a, enterKey)
	assert.False(t, a.showAcknowledgeModal)
}

func TestEnterWithEmptyInputDoesNothing(t *testing.T) {
	a := withCurrentSession(t)

	next, cmd := a.Update(enterKey)
	a = next.(AppView)

	assert.False(t, a.sending)
	assert.Nil(t, cmd)
}

func TestEnterSendsAndShowsTypingIndicator(t *testing.T) {
	a := withCurrentSession(t)
	a.textarea.SetValue("what is the revenue?")

	next, cmd := a.Update(enterKey)
	a = next.(AppView)

	require.NotNil(t, cmd)
	assert.True(t, a.sending)
	assert.Empty(t, a.textarea.Value())
	assert.Contains(t, a.viewport.View(), "Thinking...")

	a = update(t, a, appmodel.SendCompleteMsg{})
	assert.False(t, a.sending)
}

func TestSendFailureShowsError(t *testing.T) {
	a := withCurrentSession(t)
	a.sending = true

	a = update(t, a, appmodel.SendCompleteMsg{Err: errors.New("backend exploded")})

	assert.False(t, a.sending)
	assert.True(t, a.showAcknowledgeModal)
	assert.Equal(t, "Message Failed", a.acknowledgeModalTitle)
}

func TestFailedUploadsAreListed(t *testing.T) {
	a := withCurrentSession(t)
	a.sending = true

	a = update(t, a, appmodel.SendCompleteMsg{
		Result: appmodel.SendResult{Failed: []appmodel.UploadFailure{{Path: "/tmp/a.pdf", Err: errors.New("too big")}}},
		Err:    errors.New("upload a.pdf: too big"),
	})

	assert.Equal(t, ModalTypeWarning, a.acknowledgeModalType)
	assert.Contains(t, a.acknowledgeModalMsg, "a.pdf: too big")
}

func TestRemoveAttachmentDropsLast(t *testing.T) {
	a := withCurrentSession(t)
	a.attachments = []string{"/docs/a.pdf", "/docs/b.csv"}

	a = update(t, a, alt('x'))
	assert.Equal(t, []string{"/docs/a.pdf"}, a.attachments)

	a = update(t, a, alt('x'))
	a = update(t, a, alt('x'))
	assert.Empty(t, a.attachments)
}

func TestClearInputResetsComposer(t *testing.T) {
	a := withCurrentSession(t)
	a.textarea.SetValue("draft")
	a.attachments = []string{"/docs/a.pdf"}

	a = update(t, a, alt('u'))

	assert.Empty(t, a.textarea.Value())
	assert.Empty(t, a.attachments)
}

func TestHelpToggles(t *testing.T) {
	a := withCurrentSession(t)

	a = update(t, a, alt('h'))
	require.True(t, a.showHelp)
	assert.Contains(t, a.View(), "Keyboard Shortcuts")

	a = update(t, a, escKey)
	assert.False(t, a.showHelp)
}

func TestOfflineBanner(t *testing.T) {
	a := withCurrentSession(t)
	assert.NotContains(t, a.View(), "Backend unreachable")

	a = update(t, a, appmodel.HealthMsg{Status: health.Unreachable})
	view := a.View()
	assert.Contains(t, view, "Backend unreachable at "+config.DefaultAPIBaseURL)
	assert.Contains(t, view, "● offline")

	a = update(t, a, appmodel.HealthMsg{Status: health.Healthy})
	a = update(t, a, appmodel.HealthSettledMsg{})
	view = a.View()
	assert.NotContains(t, view, "Backend unreachable")
	assert.Contains(t, view, "● online")
}

func TestRecheckMarksChecking(t *testing.T) {
	a := withCurrentSession(t)

	a = update(t, a, alt('r'))
	assert.True(t, a.healthChecking)

	a = update(t, a, appmodel.HealthSettledMsg{})
	assert.False(t, a.healthChecking)
}

func TestPasteModalRequiresSession(t *testing.T) {
	a := newTestView(t)

	a = update(t, a, alt('p'))

	assert.False(t, a.paste.Active)
	assert.True(t, a.showAcknowledgeModal)
}

func TestPasteSubmitDisabledWhileBlank(t *testing.T) {
	a := withCurrentSession(t)

	a = update(t, a, alt('p'))
	require.True(t, a.paste.Active)
	assert.False(t, a.paste.CanSubmit())

	next, cmd := a.submitPaste()
	assert.Nil(t, cmd)
	assert.False(t, next.paste.Ingesting)

	a.paste.Content.SetValue("  \n ")
	assert.False(t, a.paste.CanSubmit())

	a.paste.Content.SetValue("Some pasted notes")
	assert.True(t, a.paste.CanSubmit())

	a, cmd = a.submitPaste()
	require.NotNil(t, cmd)
	assert.True(t, a.paste.Ingesting)
	assert.Contains(t, a.View(), "Ingesting...")

	a = update(t, a, appmodel.IngestCompleteMsg{SessionID: "s1"})
	assert.False(t, a.paste.Active)
}

func TestPasteErrorStaysInModal(t *testing.T) {
	a := withCurrentSession(t)
	a = update(t, a, alt('p'))
	a.paste.Ingesting = true

	a = update(t, a, appmodel.IngestCompleteMsg{SessionID: "s1", Err: errors.New("ingest failed")})

	assert.True(t, a.paste.Active)
	assert.False(t, a.paste.Ingesting)
	assert.Equal(t, "ingest failed", a.paste.Err)
}

func TestSessionManagerDeleteConfirmation(t *testing.T) {
	a := withCurrentSession(t)

	a = update(t, a, alt('s'))
	require.True(t, a.showSessionManager)

	a = update(t, a, runeKey('d'))
	require.NotNil(t, a.confirmDeleteSession)
	assert.Contains(t, a.View(), "Delete Session")

	a = update(t, a, runeKey('n'))
	assert.Nil(t, a.confirmDeleteSession)
	assert.Empty(t, a.deletingSessions)

	a = update(t, a, runeKey('d'))
	a = update(t, a, runeKey('y'))
	assert.True(t, a.deletingSessions["s1"])

	a = update(t, a, appmodel.SessionDeletedMsg{SessionID: "s1", WasCurrent: true})
	assert.False(t, a.deletingSessions["s1"])
}

func TestSessionManagerFilter(t *testing.T) {
	a := newTestView(t,
		api.Session{ID: "a", Title: "Budget 2024"},
		api.Session{ID: "b", Title: "Team offsite"},
	)

	a = update(t, a, alt('s'))
	a = update(t, a, runeKey('/'))
	require.True(t, a.sessionFilterMode)

	for _, r := range "offs" {
		a = update(t, a, runeKey(r))
	}

	list := a.getSessionList()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	a = update(t, a, enterKey)
	assert.False(t, a.showSessionManager)
	assert.Equal(t, "b", a.dataModel.CurrentSessionID())
}

func TestTranscriptShowsCitationsAndMetrics(t *testing.T) {
	a := withCurrentSession(t,
		api.Message{ID: 1, Role: api.RoleUser, Content: "What did we spend?"},
		api.Message{
			ID:      2,
			Role:    api.RoleAssistant,
			Content: "About **$4k**.",
			Sources: []api.Source{{Title: "ledger.xlsx", Content: "Total spend 4,012"}},
			Metrics: &api.Metrics{Time: 1.5, TotalTokens: 321, Cost: 0.002},
		},
	)

	content := a.viewport.View()
	assert.Contains(t, content, "What did we spend?")
	assert.Contains(t, content, "[1] ledger.xlsx")
	assert.Contains(t, content, "⏱ 1.5s  🪙 321 tokens  💰 $0.002")
}

func TestMarkdownRenderIsCached(t *testing.T) {
	a := withCurrentSession(t, api.Message{ID: 7, Role: api.RoleAssistant, Content: "plain answer"})
	width := a.markdownWidth()

	require.True(t, a.rendering[renderKey{id: 7, width: width}])

	a = update(t, a, appmodel.MarkdownRenderedMsg{MessageID: 7, Width: width, Content: "plain answer", Rendered: "RENDERED"})

	assert.False(t, a.rendering[renderKey{id: 7, width: width}])
	assert.Contains(t, a.viewport.View(), "RENDERED")

	cmd := a.updateViewportContent(false)
	assert.Nil(t, cmd)
}

func TestEmptySessionShowsSupportedFormats(t *testing.T) {
	a := withCurrentSession(t)

	content := a.viewport.View()
	assert.Contains(t, content, "Supported Files")
	assert.Contains(t, content, ".docx")
}

func TestQuitPersists(t *testing.T) {
	a := withCurrentSession(t)

	_, cmd := a.Update(alt('q'))
	require.NotNil(t, cmd)
}

func TestStatusBarFlash(t *testing.T) {
	a := withCurrentSession(t)

	a = update(t, a, appmodel.ClipboardMsg{})
	assert.Contains(t, a.renderStatusBar(), "Copied")

	for i := 0; i < 10; i++ {
		a = update(t, a, appmodel.FlashTickMsg{})
	}
	assert.False(t, strings.Contains(a.renderStatusBar(), "Copied"))
}

// runCmd executes cmd and any batched commands, returning every message.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestClearAllKeepsPendingMarkdownRenders(t *testing.T) {
	a := withCurrentSession(t, api.Message{ID: 9, Role: api.RoleAssistant, Content: "**still here**"})
	clear(a.rendering)

	next, cmd := a.Update(appmodel.AllSessionsDeletedMsg{})
	a = next.(AppView)

	var rendered bool
	for _, msg := range runCmd(cmd) {
		if r, ok := msg.(appmodel.MarkdownRenderedMsg); ok && r.MessageID == 9 {
			rendered = true
		}
	}
	assert.True(t, rendered)
	assert.Contains(t, a.renderStatusBar(), "All chats cleared")
}

func TestFailedUploadsAndFailedQuestionAreBothShown(t *testing.T) {
	a := withCurrentSession(t)
	a.sending = true

	a = update(t, a, appmodel.SendCompleteMsg{
		Result: appmodel.SendResult{
			Failed: []appmodel.UploadFailure{{Path: "/tmp/a.pdf", Err: errors.New("too big")}},
			AskErr: errors.New("model unavailable"),
		},
		Err: errors.New("upload a.pdf: too big"),
	})

	assert.True(t, a.showAcknowledgeModal)
	assert.Contains(t, a.acknowledgeModalMsg, "a.pdf: too big")
	assert.Contains(t, a.acknowledgeModalMsg, "Message failed: model unavailable")
}
