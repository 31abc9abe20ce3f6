package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/triadhq/triad/internal/log"
	"github.com/triadhq/triad/internal/session"
)

// Pagination and validation bounds.
const (
	MaxTitleLength   = 100
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxListOffset    = 100000
)

// SessionStore is the slice of *session.Store the handlers need.
type SessionStore interface {
	Create(ctx context.Context, title string) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	List(ctx context.Context, limit, offset int32) ([]*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ClearTurns(ctx context.Context, sessionID uuid.UUID) error
}

// SessionHandler serves the session management endpoints.
type SessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store SessionStore, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
	mux.HandleFunc("DELETE /api/sessions/{id}/history", h.clearHistory)
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	// #nosec G115 -- bounded by MaxListLimit and MaxListOffset
	sessions, err := h.store.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	// Character count, matching the VARCHAR(100) column.
	if utf8.RuneCountInString(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "title_too_long", "title too long (max 100 characters)")
		return
	}

	sess, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("creating session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		h.logger.Error("getting session failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		h.logger.Error("deleting session failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.Get(r.Context(), id); errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	if err := h.store.ClearTurns(r.Context(), id); err != nil {
		h.logger.Error("clearing history failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "clear_failed", "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with bounds.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
