package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triadhq/triad/internal/log"
	"github.com/triadhq/triad/internal/session"
)

// fakeStore is an in-memory SessionStore.
type fakeStore struct {
	sessions map[uuid.UUID]*session.Session
	cleared  map[uuid.UUID]bool
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*session.Session),
		cleared:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) Create(ctx context.Context, title string) (*session.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	sess := &session.Session{ID: uuid.New(), Title: title}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	sess, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (f *fakeStore) List(ctx context.Context, limit, offset int32) ([]*session.Session, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*session.Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) ClearTurns(ctx context.Context, sessionID uuid.UUID) error {
	f.cleared[sessionID] = true
	return nil
}

func newSessionMux(store SessionStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewSessionHandler(store, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestSessionCreate(t *testing.T) {
	store := newFakeStore()
	mux := newSessionMux(store)

	body := bytes.NewBufferString(`{"title": "deploy questions"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, "deploy questions", sess.Title)
	assert.NotEqual(t, uuid.UUID{}, sess.ID)
}

func TestSessionCreateRejectsLongTitle(t *testing.T) {
	mux := newSessionMux(newFakeStore())

	long := bytes.Repeat([]byte("x"), MaxTitleLength+1)
	body, _ := json.Marshal(CreateSessionRequest{Title: string(long)})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionList(t *testing.T) {
	store := newFakeStore()
	_, err := store.Create(t.Context(), "one")
	require.NoError(t, err)
	mux := newSessionMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=5", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []*session.Session `json:"sessions"`
		Total    int                `json:"total"`
		Limit    int                `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 5, resp.Limit)
}

func TestSessionListError(t *testing.T) {
	store := newFakeStore()
	store.failWith = errors.New("db down")
	mux := newSessionMux(store)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSessionGetNotFound(t *testing.T) {
	mux := newSessionMux(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionGetInvalidID(t *testing.T) {
	mux := newSessionMux(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionDelete(t *testing.T) {
	store := newFakeStore()
	sess, err := store.Create(t.Context(), "doomed")
	require.NoError(t, err)
	mux := newSessionMux(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sess.ID.String(), nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.sessions)
}

func TestSessionClearHistory(t *testing.T) {
	store := newFakeStore()
	sess, err := store.Create(t.Context(), "keep me")
	require.NoError(t, err)
	mux := newSessionMux(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sess.ID.String()+"/history", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, store.cleared[sess.ID], "ClearTurns not called")
	assert.Contains(t, store.sessions, sess.ID, "session itself must survive a history clear")
}
