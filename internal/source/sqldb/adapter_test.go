package sqldb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeGen struct {
	stmt string
	err  error
}

func (f *fakeGen) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	return f.stmt, f.err
}

type staticSchema string

func (s staticSchema) Describe(ctx context.Context) (string, error) {
	return string(s), nil
}

// fakeQuerier counts Query calls and serves canned rows.
type fakeQuerier struct {
	calls int
	rows  *fakeRows
	err   error
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// fakeRows is a minimal in-memory pgx.Rows.
type fakeRows struct {
	columns []string
	values  [][]any
	idx     int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Scan(dest ...any) error                       { return errors.New("not implemented") }
func (r *fakeRows) Values() ([]any, error)                       { return r.values[r.idx-1], nil }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.values) {
		return false
	}
	r.idx++
	return true
}

func TestSearchRejectsWriteStatementWithoutExecuting(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{}
	a := New(db, &fakeGen{stmt: "DROP TABLE Users"}, staticSchema("Table users:\n  - id (bigint)\n"), 0, nil)

	text, err := a.Search(t.Context(), "delete everything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if db.calls != 0 {
		t.Fatalf("database was queried %d times, want 0", db.calls)
	}
	if text != msgReadOnlyOnly {
		t.Errorf("Search = %q, want read-only refusal", text)
	}
}

func TestSearchSoftFailsWhenGenerationFails(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{}
	a := New(db, &fakeGen{err: errors.New("model unavailable")}, staticSchema("Table users:\n"), 0, nil)

	text, err := a.Search(t.Context(), "how many users?")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if text != msgCannotGenerate {
		t.Errorf("Search = %q, want generation refusal", text)
	}
	if db.calls != 0 {
		t.Errorf("database queried despite missing statement")
	}
}

func TestSearchExecutesAndFormatsRows(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{rows: &fakeRows{
		columns: []string{"name", "signups"},
		values: [][]any{
			{"alpha", int64(12)},
			{"beta", nil},
		},
	}}
	a := New(db, &fakeGen{stmt: "```sql\nSELECT name, signups FROM teams\n```"}, staticSchema("Table teams:\n"), 0, nil)

	text, err := a.Search(t.Context(), "signups per team")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if db.calls != 1 {
		t.Fatalf("database queried %d times, want 1", db.calls)
	}
	for _, want := range []string{
		"SELECT name, signups FROM teams",
		"name | signups",
		"alpha | 12",
		"beta | NULL",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestSearchPropagatesQueryErrors(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{err: errors.New("connection refused")}
	a := New(db, &fakeGen{stmt: "SELECT 1"}, staticSchema("Table t:\n"), 0, nil)

	if _, err := a.Search(t.Context(), "anything"); err == nil {
		t.Error("execution failure not propagated")
	}
}

func TestFormatTableCapsDisplayedRows(t *testing.T) {
	t.Parallel()

	values := make([][]any, 10)
	for i := range values {
		values[i] = []any{i}
	}
	got := formatTable([]string{"n"}, values, 37)

	if !strings.Contains(got, "... and 27 more rows (37 total)") {
		t.Errorf("missing truncation note:\n%s", got)
	}
	if lines := strings.Count(got, "\n"); lines != 12 { // header, rule, 10 rows, note
		t.Errorf("rendered %d newlines, want 12:\n%s", lines, got)
	}
}

func TestFormatTableEmpty(t *testing.T) {
	t.Parallel()

	if got := formatTable([]string{"n"}, nil, 0); got != "The query returned no rows." {
		t.Errorf("formatTable empty = %q", got)
	}
}
