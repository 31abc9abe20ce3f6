package sqldb

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const sqlSystemPrompt = `You translate questions into PostgreSQL queries.

Rules:
- Output exactly one SQL statement and nothing else. No explanation, no Markdown fence.
- The statement must be a read-only SELECT (WITH ... SELECT is fine).
- Never write INSERT, UPDATE, DELETE, DROP, ALTER, or any other statement that modifies data or schema.
- Use only the tables and columns listed in the schema.
- If the question cannot be answered from the schema, output: SELECT 'not answerable'`

// LLMGenerator generates SQL statements with the configured model.
type LLMGenerator struct {
	g     *genkit.Genkit
	model string
}

// NewLLMGenerator creates a Generator backed by the given model.
func NewLLMGenerator(g *genkit.Genkit, model string) *LLMGenerator {
	return &LLMGenerator{g: g, model: model}
}

// GenerateSQL implements Generator.
func (l *LLMGenerator) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	resp, err := genkit.Generate(ctx, l.g,
		ai.WithModelName(l.model),
		ai.WithSystem(sqlSystemPrompt),
		ai.WithPrompt("Schema:\n%s\n\nQuestion: %s", schema, question),
	)
	if err != nil {
		return "", fmt.Errorf("generating sql: %w", err)
	}
	return resp.Text(), nil
}
