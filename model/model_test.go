package model

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djrag/api"
)

func TestNewChatSeedsEmptyHistory(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)

	sess, err := m.NewChat(context.Background())
	require.NoError(t, err)

	assert.Equal(t, api.DefaultSessionTitle, sess.Title)
	assert.Equal(t, sess.ID, m.CurrentSessionID())
	assert.False(t, m.Creating())

	state := m.Messages.State(sess.ID)
	assert.True(t, state.Valid)
	assert.Empty(t, state.Data)

	got, ok := m.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
}

func TestNewChatIgnoresListFetchedBeforeCreate(t *testing.T) {
	f := newFakeBackend(t)
	f.addSession("Existing")
	m := newTestModel(t, f, nil)

	held, release := f.holdNextList()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.RefreshSessions(context.Background())
	}()
	<-held

	sess, err := m.NewChat(context.Background())
	require.NoError(t, err)

	got, ok := m.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	release()
	<-done

	_, ok = m.Sessions.Find(sess.ID)
	assert.True(t, ok)
	assert.Len(t, m.Sessions.Sessions(), 2)
}

func TestDeleteIgnoresListFetchedBeforeDelete(t *testing.T) {
	f := newFakeBackend(t)
	gone := f.addSession("Gone")
	kept := f.addSession("Kept")
	m := newTestModel(t, f, nil)

	held, release := f.holdNextList()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.RefreshSessions(context.Background())
	}()
	<-held

	_, err := m.DeleteSession(context.Background(), gone.ID)
	require.NoError(t, err)

	_, ok := m.Sessions.Find(gone.ID)
	assert.False(t, ok)

	release()
	<-done

	_, ok = m.Sessions.Find(gone.ID)
	assert.False(t, ok)
	_, ok = m.Sessions.Find(kept.ID)
	assert.True(t, ok)
}

func TestNewChatFailureKeepsState(t *testing.T) {
	f := newFakeBackend(t)
	f.configure(func(f *fakeBackend) { f.failCreate = true })
	m := newTestModel(t, f, nil)

	_, err := m.NewChat(context.Background())
	assert.True(t, api.IsStatus(err, http.StatusInternalServerError))
	assert.False(t, m.HasSession())
}

func TestSendAppendsQuestionAndAnswer(t *testing.T) {
	f := newFakeBackend(t)
	sess := f.addSession("Report")
	m := newTestModel(t, f, nil)
	m.SelectSession(sess.ID)
	m.Messages.Seed(sess.ID, nil)

	result, err := m.Send(context.Background(), "what is it about?", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Reply)
	assert.False(t, result.Created)

	msgs := m.CurrentMessages()
	require.Len(t, msgs, 2)

	assert.Equal(t, api.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is it about?", msgs[0].Content)
	assert.Equal(t, fixedNow.UnixMilli(), msgs[0].ID)

	assert.Equal(t, api.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "answer to what is it about?", msgs[1].Content)
	assert.Equal(t, fixedNow.UnixMilli()+1, msgs[1].ID)
	require.Len(t, msgs[1].Sources, 1)
	require.NotNil(t, msgs[1].Metrics)
	assert.Equal(t, 42, msgs[1].Metrics.TotalTokens)

	assert.False(t, m.Sending())
}

func TestSendWithoutSessionCreatesOne(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)

	result, err := m.Send(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, result.SessionID, m.CurrentSessionID())
	assert.Len(t, m.CurrentMessages(), 2)
	assert.Len(t, m.Sessions.Sessions(), 1)
}

func TestSendAbortsWhenCreateFails(t *testing.T) {
	f := newFakeBackend(t)
	f.configure(func(f *fakeBackend) { f.failCreate = true })
	m := newTestModel(t, f, nil)

	_, err := m.Send(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.False(t, m.HasSession())
	assert.False(t, m.Sending())
}

func TestSendFailureRollsBackToServerState(t *testing.T) {
	f := newFakeBackend(t)
	sess := f.addSession("Report")
	m := newTestModel(t, f, nil)
	m.SelectSession(sess.ID)
	m.Messages.Seed(sess.ID, nil)

	_, err := m.Send(context.Background(), "first", nil)
	require.NoError(t, err)

	f.configure(func(f *fakeBackend) { f.failChat = true })

	_, err = m.Send(context.Background(), "second", nil)
	assert.True(t, api.IsStatus(err, http.StatusBadGateway))

	assert.Equal(t, f.serverMessages(sess.ID), m.CurrentMessages())
	assert.Len(t, m.CurrentMessages(), 2)
	assert.False(t, m.Sending())
}

func TestSendReportsQuestionFailureAfterUploadFailure(t *testing.T) {
	f := newFakeBackend(t)
	sess := f.addSession("New Chat")
	m := newTestModel(t, f, nil)
	m.SelectSession(sess.ID)
	m.Messages.Seed(sess.ID, nil)

	bad := writeFile(t, "broken.pdf")
	f.configure(func(f *fakeBackend) {
		f.failUpload["broken.pdf"] = true
		f.failChat = true
	})

	result, err := m.Send(context.Background(), "summarize", []string{bad})

	assert.True(t, api.IsStatus(err, http.StatusUnprocessableEntity))
	require.Len(t, result.Failed, 1)
	require.Error(t, result.AskErr)
	assert.True(t, api.IsStatus(result.AskErr, http.StatusBadGateway))
	assert.Nil(t, result.Reply)
}

func TestLocalMessageIDsNeverRepeat(t *testing.T) {
	f := newFakeBackend(t)
	sess := f.addSession("Report")
	m := newTestModel(t, f, nil)
	m.SelectSession(sess.ID)
	m.Messages.Seed(sess.ID, nil)

	// The clock is frozen, so every send lands in the same millisecond.
	for _, q := range []string{"one", "two", "three"} {
		_, err := m.Send(context.Background(), q, nil)
		require.NoError(t, err)
	}
	require.NoError(t, m.IngestText(context.Background(), "pasted", ""))

	msgs := m.CurrentMessages()
	require.Len(t, msgs, 7)
	seen := make(map[int64]bool)
	for i, msg := range msgs {
		assert.False(t, seen[msg.ID], "duplicate id %d", msg.ID)
		seen[msg.ID] = true
		if i > 0 {
			assert.Greater(t, msg.ID, msgs[i-1].ID)
		}
	}
}

func TestSendSkipsFailedUploads(t *testing.T) {
	f := newFakeBackend(t)
	sess := f.addSession("New Chat")
	m := newTestModel(t, f, nil)
	m.SelectSession(sess.ID)

	good := writeFile(t, "notes.txt")
	bad := writeFile(t, "broken.pdf")
	unsupported := writeFile(t, "tool.exe")
	f.configure(func(f *fakeBackend) { f.failUpload["broken.pdf"] = true })

	result, err := m.Send(context.Background(), "summarize", []string{bad, unsupported, good})

	require.Error(t, err)
	assert.True(t, api.IsStatus(err, http.StatusUnprocessableEntity))
	assert.Equal(t, []string{good}, result.Uploaded)
	require.Len(t, result.Failed, 2)
	assert.ErrorIs(t, result.Failed[1].Err, api.ErrUnsupportedFileType)

	// The question still went out.
	require.NotNil(t, result.Reply)

	// The backend retitled the session and the cached list caught up.
	cached, ok := m.Sessions.Find(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", cached.Title)
	assert.Equal(t, "notes.txt", cached.File())
}

func TestSendFilesOnly(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)

	result, err := m.Send(context.Background(), "   ", []string{writeFile(t, "a.csv")})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Nil(t, result.Reply)
	assert.Empty(t, m.CurrentMessages())
	assert.Equal(t, []string{"a.csv"}, f.uploaded())
}

func TestSendNothingIsNoop(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)

	result, err := m.Send(context.Background(), " \n ", nil)
	require.NoError(t, err)
	assert.Empty(t, result.SessionID)
	assert.False(t, m.HasSession())
}

func TestSecondSendWhileInFlight(t *testing.T) {
	f := newFakeBackend(t)
	sess := f.addSession("Report")
	gate := make(chan struct{})
	f.configure(func(f *fakeBackend) { f.chatGate = gate })

	m := newTestModel(t, f, nil)
	m.SelectSession(sess.ID)
	m.Messages.Seed(sess.ID, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), "slow question", nil)
		done <- err
	}()

	require.Eventually(t, m.Sending, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(m.CurrentMessages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "slow question", m.CurrentMessages()[0].Content)

	_, err := m.Send(context.Background(), "impatient", nil)
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, m.CurrentMessages(), 2)
}

func TestIngestText(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)

	assert.ErrorIs(t, m.IngestText(context.Background(), "text", ""), ErrNoSession)

	sess := f.addSession("New Chat")
	m.SelectSession(sess.ID)
	m.Messages.Seed(sess.ID, nil)

	assert.ErrorIs(t, m.IngestText(context.Background(), "  ", "x"), ErrEmptyText)

	require.NoError(t, m.IngestText(context.Background(), "some pasted text", ""))
	assert.Equal(t, []string{api.DefaultIngestTitle}, f.ingestedTitles())

	msgs := m.CurrentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, api.RoleAssistant, msgs[0].Role)
	assert.Equal(t, IngestNotice, msgs[0].Content)
	assert.True(t, m.Sessions.State().Valid)
}

func TestDeleteCurrentSessionClearsIt(t *testing.T) {
	f := newFakeBackend(t)
	a := f.addSession("A")
	b := f.addSession("B")
	m := newTestModel(t, f, nil)
	m.SelectSession(a.ID)
	m.Messages.Seed(a.ID, nil)
	m.Messages.Seed(b.ID, nil)

	wasCurrent, err := m.DeleteSession(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, wasCurrent)
	assert.False(t, m.HasSession())
	assert.False(t, m.Messages.State(a.ID).Valid)

	sessions := m.Sessions.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, b.ID, sessions[0].ID)
}

func TestDeleteOtherSessionKeepsCurrent(t *testing.T) {
	f := newFakeBackend(t)
	a := f.addSession("A")
	b := f.addSession("B")
	m := newTestModel(t, f, nil)
	m.SelectSession(a.ID)

	wasCurrent, err := m.DeleteSession(context.Background(), b.ID)
	require.NoError(t, err)
	assert.False(t, wasCurrent)
	assert.Equal(t, a.ID, m.CurrentSessionID())
}

func TestDeleteFailureChangesNothing(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)
	m.SelectSession("ghost")

	_, err := m.DeleteSession(context.Background(), "ghost")
	assert.True(t, api.IsStatus(err, http.StatusNotFound))
	assert.Equal(t, "ghost", m.CurrentSessionID())
}

func TestDeleteAllSessions(t *testing.T) {
	f := newFakeBackend(t)
	a := f.addSession("A")
	f.addSession("B")
	m := newTestModel(t, f, nil)
	m.SelectSession(a.ID)
	m.Messages.Seed(a.ID, []api.Message{{ID: 1, Role: api.RoleUser}})

	require.NoError(t, m.DeleteAllSessions(context.Background()))
	assert.False(t, m.HasSession())
	assert.Empty(t, m.Sessions.Sessions())
	assert.Empty(t, m.Messages.All())
}

func TestPersistThenRestore(t *testing.T) {
	f := newFakeBackend(t)
	snap := newSnapshot(t)
	m := newTestModel(t, f, snap)

	_, err := m.Send(context.Background(), "remember me", nil)
	require.NoError(t, err)
	id := m.CurrentSessionID()
	require.NoError(t, m.Persist())

	restored := newTestModel(t, f, snap)
	require.NoError(t, restored.Restore())

	assert.Equal(t, id, restored.CurrentSessionID())
	assert.Len(t, restored.Sessions.Sessions(), 1)
	msgs := restored.CurrentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "remember me", msgs[0].Content)
}

func TestRestoreIgnoresUnknownCurrentSession(t *testing.T) {
	f := newFakeBackend(t)
	snap := newSnapshot(t)
	require.NoError(t, snap.SaveCurrentSessionID("gone"))

	m := newTestModel(t, f, snap)
	require.NoError(t, m.Restore())
	assert.False(t, m.HasSession())
	assert.False(t, m.Sessions.State().Valid)
}

func TestResumeDropsDeletedSession(t *testing.T) {
	f := newFakeBackend(t)
	m := newTestModel(t, f, nil)
	m.Sessions.Seed([]api.Session{{ID: "old"}})
	m.SelectSession("old")

	require.NoError(t, m.Resume(context.Background()))
	assert.False(t, m.HasSession())
}

func TestDeleteRemovesFromSnapshot(t *testing.T) {
	f := newFakeBackend(t)
	a := f.addSession("A")
	snap := newSnapshot(t)
	require.NoError(t, snap.SaveMessages(a.ID, []api.Message{{ID: 1, Role: api.RoleUser}}))

	m := newTestModel(t, f, snap)
	_, err := m.DeleteSession(context.Background(), a.ID)
	require.NoError(t, err)

	msgs, err := snap.LoadMessages(a.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
