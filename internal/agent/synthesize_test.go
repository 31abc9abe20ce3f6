package agent

import (
	"strings"
	"testing"
)

// The synthesis instructions must cover every merge rule: grounding,
// deduplication, conflict flagging, per-fact attribution, detail
// preservation, and concision.
func TestSynthesisPromptCoversMergeRules(t *testing.T) {
	t.Parallel()

	for _, want := range []string{
		"only the provided source sections",
		"say it once",
		"contradict",
		"Attribute each fact",
		"intact",
		"concisely",
	} {
		if !strings.Contains(synthesisSystemPrompt, want) {
			t.Errorf("synthesis prompt missing rule %q", want)
		}
	}
}
