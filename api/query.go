package api

import (
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/triadhq/triad/internal/assistant"
	"github.com/triadhq/triad/internal/log"
)

// QueryHandler serves the query endpoint through the genkit flow
// handler, so the same flow backs the HTTP API, the CLI, and the
// genkit developer UI.
type QueryHandler struct {
	flow   *assistant.Flow
	logger log.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(flow *assistant.Flow, logger log.Logger) *QueryHandler {
	return &QueryHandler{flow: flow, logger: logger}
}

// RegisterRoutes registers the query route on mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("query flow is nil, query endpoint not registered")
		return
	}
	mux.Handle("POST /api/query", genkit.Handler(h.flow))
}
