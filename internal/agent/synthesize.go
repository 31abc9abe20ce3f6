package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/triadhq/triad/internal/merger"
)

const synthesisSystemPrompt = `You combine answers from several knowledge sources into one response.

Rules:
- Use only the provided source sections. Never add facts of your own.
- Resolve overlap: if two sources say the same thing, say it once.
- If sources contradict each other, say so explicitly and present both claims.
- Attribute each fact to the source section it came from.
- Keep source-specific details (URLs, repository names, numbers) intact.
- Answer the user's question directly and concisely; do not describe the sources themselves.`

// Synthesizer merges multi-source results with the model. It
// implements merger.Synthesizer.
type Synthesizer struct {
	g     *genkit.Genkit
	model string
}

// NewSynthesizer creates a Synthesizer backed by the given model.
func NewSynthesizer(g *genkit.Genkit, model string) *Synthesizer {
	return &Synthesizer{g: g, model: model}
}

// Synthesize implements merger.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, sections []merger.Section) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", query)
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", sec.Label, strings.TrimSpace(sec.Text))
	}

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.model),
		ai.WithSystem(synthesisSystemPrompt),
		ai.WithPrompt(b.String()),
	)
	if err != nil {
		return "", fmt.Errorf("synthesizing answer: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned an empty synthesis")
	}
	return text, nil
}
