package model

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"djrag/api"
	"djrag/config"
	"djrag/storage"
)

// fakeBackend is an in-memory DJ Rag server.
type fakeBackend struct {
	mu       sync.Mutex
	sessions []api.Session
	messages map[string][]api.Message
	nextID   int
	nextMsg  int64
	ingested []string // titles
	uploads  []string // file names

	failChat   bool
	failCreate bool
	failUpload map[string]bool
	chatGate   chan struct{}

	// The next session list is captured, then held until listGate closes.
	listHeld chan struct{}
	listGate chan struct{}

	srv *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		messages:   make(map[string][]api.Message),
		failUpload: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", f.listSessions)
	mux.HandleFunc("POST /sessions", f.createSession)
	mux.HandleFunc("DELETE /sessions", f.deleteAll)
	mux.HandleFunc("DELETE /sessions/{id}", f.deleteSession)
	mux.HandleFunc("GET /sessions/{id}/messages", f.listMessages)
	mux.HandleFunc("POST /sessions/{id}/chat", f.chat)
	mux.HandleFunc("POST /sessions/{id}/upload", f.upload)
	mux.HandleFunc("POST /sessions/{id}/ingest_text", f.ingest)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) client(t *testing.T) *api.Client {
	t.Helper()
	c, err := api.NewClient(f.srv.URL, f.srv.Client())
	require.NoError(t, err)
	return c
}

func (f *fakeBackend) addSession(title string) api.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addSessionLocked(title)
}

func (f *fakeBackend) addSessionLocked(title string) api.Session {
	f.nextID++
	s := api.Session{
		ID:        fmt.Sprintf("s%d", f.nextID),
		Title:     title,
		CreatedAt: api.NewTimestamp(time.Date(2025, 1, 1, 0, f.nextID, 0, 0, time.UTC)),
	}
	f.sessions = append([]api.Session{s}, f.sessions...)
	return s
}

// configure mutates the fake under its lock.
func (f *fakeBackend) configure(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.uploads)
}

func (f *fakeBackend) ingestedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ingested)
}

func (f *fakeBackend) serverMessages(id string) []api.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages[id])
}

func (f *fakeBackend) sessionTitle(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return s.Title
		}
	}
	return ""
}

func (f *fakeBackend) listSessions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	list := append([]api.Session{}, f.sessions...)
	held, gate := f.listHeld, f.listGate
	f.listHeld, f.listGate = nil, nil
	f.mu.Unlock()

	if gate != nil {
		close(held)
		<-gate
	}
	writeJSON(w, list)
}

// holdNextList makes the next session list request capture the list and
// wait. It returns a channel closed once the list is captured and a func
// that lets the request finish.
func (f *fakeBackend) holdNextList() (<-chan struct{}, func()) {
	held := make(chan struct{})
	gate := make(chan struct{})
	f.configure(func(f *fakeBackend) {
		f.listHeld = held
		f.listGate = gate
	})
	return held, func() { close(gate) }
}

func (f *fakeBackend) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	writeJSON(w, f.addSessionLocked(body.Title))
}

func (f *fakeBackend) deleteAll(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = nil
	f.messages = make(map[string][]api.Message)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBackend) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.sessions, func(s api.Session) bool { return s.ID == id })
	if i < 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	f.sessions = slices.Delete(f.sessions, i, i+1)
	delete(f.messages, id)
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (f *fakeBackend) listMessages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, append([]api.Message{}, f.messages[r.PathValue("id")]...))
}

func (f *fakeBackend) chat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	gate := f.chatGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChat {
		http.Error(w, "model unavailable", http.StatusBadGateway)
		return
	}

	resp := api.ChatResponse{
		Answer:  "answer to " + body.Question,
		Sources: []api.Source{{ID: 1, Title: "doc.pdf", Content: "excerpt"}},
		Metrics: &api.Metrics{Time: 0.5, TotalTokens: 42, Cost: 0.001},
	}
	f.nextMsg += 2
	f.messages[id] = append(f.messages[id],
		api.Message{ID: f.nextMsg - 1, Role: api.RoleUser, Content: body.Question},
		api.Message{ID: f.nextMsg, Role: api.RoleAssistant, Content: resp.Answer, Sources: resp.Sources, Metrics: resp.Metrics},
	)
	writeJSON(w, resp)
}

func (f *fakeBackend) upload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload[header.Filename] {
		http.Error(w, "cannot parse", http.StatusUnprocessableEntity)
		return
	}
	f.uploads = append(f.uploads, header.Filename)
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			name := header.Filename
			f.sessions[i].Title = name
			f.sessions[i].FileName = &name
		}
	}
	writeJSON(w, map[string]any{"status": "ok", "chunks": 3})
}

func (f *fakeBackend) ingest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text  string `json:"text"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, body.Title)
	writeJSON(w, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, f *fakeBackend, snapshot Snapshotter) *Model {
	t.Helper()
	m := NewModel(config.Default(), f.client(t), nil, snapshot, "test")
	m.now = func() time.Time { return fixedNow }
	t.Cleanup(m.Shutdown)
	return m
}

func newSnapshot(t *testing.T) *storage.SnapshotStore {
	t.Helper()
	s, err := storage.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o600))
	return path
}
