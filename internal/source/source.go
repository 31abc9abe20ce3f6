// Package source defines the uniform contract for triad's search
// backends and the sufficiency heuristic applied to their output.
//
// Three backends exist: the wiki document store, the code host, and
// the structured-data database. The orchestration core treats all of
// them as black boxes behind the Adapter interface; a deployment may
// omit any of them, and the router treats a missing adapter exactly
// like one whose results never pass the sufficiency check.
package source

import "context"

// Canonical backend identifiers, in fixed source-priority order.
// The merger labels and orders answer blocks by this priority, never
// by completion order.
const (
	NameWiki = "wiki"
	NameCode = "code"
	NameData = "data"
)

// Priority returns the fixed source-priority order of all backends.
func Priority() []string {
	return []string{NameWiki, NameCode, NameData}
}

// Adapter wraps one external search backend behind a uniform interface.
//
// Search must not return an error for "no results": an empty or
// explanatory string is a valid non-error outcome. Errors are reserved
// for transport-level failures; the router converts those to absent
// results rather than propagating them. Implementations are
// network-bound and must honor ctx cancellation.
type Adapter interface {
	// Name returns the backend identifier (NameWiki, NameCode, NameData).
	Name() string

	// Search runs one natural-language query against the backend and
	// returns its textual result. The data backend translates the
	// question into a single read-only SQL statement; anything else is
	// rejected with an explanatory result string before execution.
	Search(ctx context.Context, query string) (string, error)
}

// Label returns the human-readable heading used for a backend's block
// in a merged answer.
func Label(name string) string {
	switch name {
	case NameWiki:
		return "Wiki Documentation"
	case NameCode:
		return "Code Repositories"
	case NameData:
		return "Database"
	default:
		return name
	}
}
