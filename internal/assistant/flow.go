package assistant

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/triadhq/triad/internal/merger"
)

// QueryInput is the flow input. An empty SessionID starts a new
// session.
type QueryInput struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

// QueryOutput is the flow output.
type QueryOutput struct {
	SessionID   string   `json:"session_id"`
	Text        string   `json:"text"`
	SourcesUsed []string `json:"sources_used"`
}

// Flow is the registered query flow type.
type Flow = core.Flow[QueryInput, QueryOutput, struct{}]

// DefineFlow registers the query flow and returns it, so it is both
// invocable programmatically and servable through genkit.Handler.
func DefineFlow(g *genkit.Genkit, a *Assistant) *Flow {
	return genkit.DefineFlow(g, "query",
		func(ctx context.Context, input QueryInput) (QueryOutput, error) {
			if input.Query == "" {
				return QueryOutput{}, fmt.Errorf("query must not be empty")
			}

			var sessionID uuid.UUID
			if input.SessionID == "" {
				sess, err := a.StartSession(ctx, input.Query)
				if err != nil {
					return QueryOutput{}, fmt.Errorf("starting session: %w", err)
				}
				sessionID = sess.ID
			} else {
				parsed, err := uuid.Parse(input.SessionID)
				if err != nil {
					return QueryOutput{}, fmt.Errorf("invalid session_id: %w", err)
				}
				sessionID = parsed
			}

			answer, err := a.HandleQuery(ctx, sessionID, input.Query)
			if err != nil {
				return QueryOutput{}, err
			}
			return toOutput(sessionID, answer), nil
		})
}

func toOutput(sessionID uuid.UUID, answer merger.Answer) QueryOutput {
	out := QueryOutput{
		SessionID:   sessionID.String(),
		Text:        answer.Text,
		SourcesUsed: answer.SourcesUsed,
	}
	if out.SourcesUsed == nil {
		out.SourcesUsed = []string{}
	}
	return out
}
