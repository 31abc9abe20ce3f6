package sqldb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// schemaTTL bounds how long an introspected schema description is
// reused before the catalog is read again.
const schemaTTL = 5 * time.Minute

// Schema introspects the public tables of the connected database and
// renders them as a prompt-friendly description. Results are cached
// because the catalog rarely changes between queries.
type Schema struct {
	db Querier

	mu        sync.Mutex
	cached    string
	refreshed time.Time
}

// NewSchema creates a schema provider over db.
func NewSchema(db Querier) *Schema {
	return &Schema{db: db}
}

// Describe implements SchemaProvider.
func (s *Schema) Describe(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Since(s.refreshed) < schemaTTL {
		return s.cached, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT table_name, column_name, data_type
		 FROM information_schema.columns
		 WHERE table_schema = 'public'
		 ORDER BY table_name, ordinal_position`,
	)
	if err != nil {
		return "", fmt.Errorf("reading information_schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	lastTable := ""
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return "", fmt.Errorf("scanning column row: %w", err)
		}
		if table != lastTable {
			if lastTable != "" {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "Table %s:\n", table)
			lastTable = table
		}
		fmt.Fprintf(&b, "  - %s (%s)\n", column, dataType)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating schema rows: %w", err)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no tables found in schema 'public'")
	}

	s.cached = b.String()
	s.refreshed = time.Now()
	return s.cached, nil
}
