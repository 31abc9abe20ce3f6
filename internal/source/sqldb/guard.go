package sqldb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotReadOnly indicates a generated statement was rejected by the
// read-only gate.
var ErrNotReadOnly = errors.New("statement is not a read-only query")

// writeKeywords are rejected anywhere in the statement, not just as
// the leading keyword, so a SELECT wrapping a data-modifying CTE
// (INSERT ... RETURNING inside WITH) cannot slip through.
var writeKeywords = []string{
	"insert", "update", "delete", "drop", "truncate", "alter",
	"create", "grant", "revoke", "copy", "vacuum",
}

// EnsureReadOnly validates that stmt is a single read-only SELECT
// statement. Model-generated SQL is untrusted input: everything that
// is not provably a plain query is rejected before it reaches the
// database, regardless of the database role's own permissions.
func EnsureReadOnly(stmt string) error {
	s := strings.TrimSpace(stmt)
	if s == "" {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}

	// One trailing semicolon is tolerated; any other semicolon means
	// multiple statements.
	s = strings.TrimSuffix(s, ";")
	if strings.Contains(s, ";") {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}

	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}
	switch fields[0] {
	case "select", "with":
	default:
		return fmt.Errorf("%w: statement starts with %q", ErrNotReadOnly, fields[0])
	}

	for _, word := range fields {
		word = strings.Trim(word, "(),")
		for _, kw := range writeKeywords {
			if word == kw {
				return fmt.Errorf("%w: contains %q", ErrNotReadOnly, kw)
			}
		}
	}
	return nil
}

// stripCodeFence removes a Markdown code fence around model output, so
// "```sql\nSELECT ...\n```" becomes the bare statement.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
