// Package sqldb implements the structured-data source adapter: it
// turns a natural-language question into a single read-only SQL query,
// executes it against PostgreSQL, and renders the rows as a compact
// text table for the answering model.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/triadhq/triad/internal/source"
)

// Soft-failure messages. These are returned as adapter text rather
// than errors so the conversation can continue; the data backend's
// sufficiency phrases match them, which keeps such turns out of the
// merged answer.
const (
	msgCannotGenerate = "Could not generate a SQL query for this question."
	msgReadOnlyOnly   = "Only read-only SELECT queries are allowed."
)

// DefaultMaxRows bounds how many result rows are rendered in full.
const DefaultMaxRows = 10

// Querier is the subset of pgxpool.Pool the adapter needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Generator produces one SQL statement for a natural-language
// question, given a textual schema description. Implemented by the LLM
// layer.
type Generator interface {
	GenerateSQL(ctx context.Context, question, schema string) (string, error)
}

// Adapter answers questions from the relational database.
type Adapter struct {
	db      Querier
	gen     Generator
	schema  SchemaProvider
	maxRows int
	logger  *slog.Logger
}

// SchemaProvider describes the queryable tables for the generator
// prompt.
type SchemaProvider interface {
	Describe(ctx context.Context) (string, error)
}

// New creates a data adapter. maxRows <= 0 selects DefaultMaxRows.
func New(db Querier, gen Generator, schema SchemaProvider, maxRows int, logger *slog.Logger) *Adapter {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{db: db, gen: gen, schema: schema, maxRows: maxRows, logger: logger}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return source.NameData }

// Search implements source.Adapter. Generation and validation failures
// come back as soft-failure text; only infrastructure errors (schema
// introspection, query execution) are returned as errors.
func (a *Adapter) Search(ctx context.Context, query string) (string, error) {
	schema, err := a.schema.Describe(ctx)
	if err != nil {
		return "", fmt.Errorf("describing schema: %w", err)
	}

	raw, err := a.gen.GenerateSQL(ctx, query, schema)
	if err != nil {
		a.logger.Warn("sql generation failed", "error", err)
		return msgCannotGenerate, nil
	}

	stmt := stripCodeFence(raw)
	if err := EnsureReadOnly(stmt); err != nil {
		// The statement is never executed; log it for the audit trail.
		a.logger.Warn("rejected generated statement", "statement", stmt, "error", err)
		if errors.Is(err, ErrNotReadOnly) {
			return msgReadOnlyOnly, nil
		}
		return "", err
	}

	a.logger.Debug("executing generated query", "statement", stmt)
	rows, err := a.db.Query(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	table, err := renderRows(rows, a.maxRows)
	if err != nil {
		return "", fmt.Errorf("database query error: %w", err)
	}
	return fmt.Sprintf("Query:\n%s\n\nResults:\n%s", stmt, table), nil
}

// renderRows renders pgx rows as a pipe-separated table, capping the
// rendered rows at maxRows and noting the remainder.
func renderRows(rows pgx.Rows, maxRows int) (string, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var values [][]any
	total := 0
	for rows.Next() {
		total++
		if total > maxRows {
			continue
		}
		vals, err := rows.Values()
		if err != nil {
			return "", fmt.Errorf("reading row: %w", err)
		}
		values = append(values, vals)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating rows: %w", err)
	}

	return formatTable(columns, values, total), nil
}

// formatTable builds the pipe-separated table text. total is the full
// row count, which may exceed len(values) when the display cap kicked
// in.
func formatTable(columns []string, values [][]any, total int) string {
	if total == 0 {
		return "The query returned no rows."
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len(strings.Join(columns, " | "))))
	for _, row := range values {
		b.WriteByte('\n')
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	if hidden := total - len(values); hidden > 0 {
		fmt.Fprintf(&b, "\n... and %d more rows (%d total)", hidden, total)
	}
	return b.String()
}
