package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/triadhq/triad/internal/log"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newHealthMux(p Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	NewHealthHandler(p, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestLiveness(t *testing.T) {
	mux := newHealthMux(fakePinger{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestReadinessOK(t *testing.T) {
	mux := newHealthMux(fakePinger{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessDatabaseDown(t *testing.T) {
	mux := newHealthMux(fakePinger{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadinessNilPool(t *testing.T) {
	mux := newHealthMux(nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
