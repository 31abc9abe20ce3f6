package source

import "strings"

// Classifier decides whether a backend's textual output counts as a
// found answer.
//
// This is a heuristic, not a semantic judgment: a result is
// insufficient when it is empty, shorter than MinLength after
// trimming, or contains any configured phrase as a case-insensitive
// substring. False positives and negatives are expected and accepted:
// a model-authored refusal that uses none of the configured phrases
// will be misclassified as sufficient. Keep the phrase lists and
// thresholds configurable; they are tuned, not derived.
//
// The data backend uses the same mechanism with an error-phrase list:
// there a matching phrase means the query failed rather than "nothing
// was found". The check is identical either way.
type Classifier struct {
	// MinLength is the minimum trimmed length for a sufficient result.
	MinLength int

	// NegativePhrases mark a result insufficient when present
	// (case-insensitive substring match).
	NegativePhrases []string
}

// Sufficient reports whether text counts as a found answer.
func (c Classifier) Sufficient(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if len(trimmed) < c.MinLength {
		return false
	}

	lower := strings.ToLower(text)
	for _, phrase := range c.NegativePhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return false
		}
	}
	return true
}
