// Package merger combines the routed backend results into the single
// answer returned to the user.
//
// Only sufficient results participate in the merged text and in the
// sources-used attribution. With no sufficient result the merger emits
// a deterministic not-found message naming the backends that were
// consulted; with exactly one it passes the text through unmodified;
// with several it either concatenates labeled sections in fixed source
// priority order or asks the model to synthesize one coherent answer.
package merger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/triadhq/triad/internal/router"
	"github.com/triadhq/triad/internal/source"
)

// Merge strategies.
const (
	StrategyConcat     = "concat"
	StrategySynthesize = "synthesize"
)

// Answer is the merged result of one query.
type Answer struct {
	Text        string   `json:"text"`
	SourcesUsed []string `json:"sources_used"`
}

// Section is one sufficient backend contribution handed to a
// Synthesizer, already in source priority order.
type Section struct {
	Source string
	Label  string
	Text   string
}

// Synthesizer rewrites several backend contributions into one coherent
// answer. Implemented by the LLM layer; a failure falls back to plain
// concatenation so a model outage never loses retrieved content.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, sections []Section) (string, error)
}

// Merger merges routed results according to a fixed strategy.
type Merger struct {
	strategy string
	synth    Synthesizer
	logger   *slog.Logger
}

// New creates a Merger. synth may be nil for StrategyConcat; it is
// required for StrategySynthesize.
func New(strategy string, synth Synthesizer, logger *slog.Logger) (*Merger, error) {
	switch strategy {
	case StrategyConcat:
	case StrategySynthesize:
		if synth == nil {
			return nil, errors.New("synthesize strategy requires a synthesizer")
		}
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{strategy: strategy, synth: synth, logger: logger}, nil
}

// Merge combines results into the final answer. It never fails: the
// degenerate cases produce deterministic text instead of errors.
func (m *Merger) Merge(ctx context.Context, query string, results []router.Result) Answer {
	sections := sufficientSections(results)

	switch len(sections) {
	case 0:
		return Answer{Text: notFoundMessage(results)}
	case 1:
		// A single source's answer is already coherent; pass it
		// through byte for byte.
		return Answer{
			Text:        sections[0].Text,
			SourcesUsed: []string{sections[0].Source},
		}
	}

	used := make([]string, len(sections))
	for i, sec := range sections {
		used[i] = sec.Source
	}

	if m.strategy == StrategySynthesize {
		text, err := m.synth.Synthesize(ctx, query, sections)
		if err == nil {
			return Answer{Text: text, SourcesUsed: used}
		}
		m.logger.Warn("synthesis failed, falling back to concatenation", "error", err)
	}

	return Answer{Text: concat(sections), SourcesUsed: used}
}

// sufficientSections filters to sufficient results and orders them by
// fixed source priority, deduplicating by source so a repeated merge
// over the same results stays idempotent.
func sufficientSections(results []router.Result) []Section {
	byName := make(map[string]router.Result, len(results))
	for _, res := range results {
		if !res.Sufficient {
			continue
		}
		if _, seen := byName[res.Source]; !seen {
			byName[res.Source] = res
		}
	}

	var sections []Section
	for _, name := range source.Priority() {
		res, ok := byName[name]
		if !ok {
			continue
		}
		sections = append(sections, Section{
			Source: name,
			Label:  source.Label(name),
			Text:   res.Text,
		})
	}
	return sections
}

// concat joins sections under their source labels, each label exactly
// once, in priority order.
func concat(sections []Section) string {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", sec.Label, strings.TrimSpace(sec.Text))
	}
	return b.String()
}

// notFoundMessage names the backends that were consulted without a
// sufficient answer. Deterministic so callers and tests can rely on it.
func notFoundMessage(results []router.Result) string {
	var labels []string
	seen := make(map[string]bool, len(results))
	for _, name := range source.Priority() {
		for _, res := range results {
			if res.Source == name && !seen[name] {
				seen[name] = true
				labels = append(labels, source.Label(name))
			}
		}
	}
	if len(labels) == 0 {
		return "I could not find relevant information to answer this question."
	}
	return fmt.Sprintf(
		"I could not find relevant information in %s. Try rephrasing the question or adding more specific terms.",
		joinLabels(labels),
	)
}

func joinLabels(labels []string) string {
	switch len(labels) {
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " or " + labels[1]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + ", or " + labels[len(labels)-1]
	}
}
