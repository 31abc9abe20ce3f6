package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// DB is the subset of pgxpool.Pool the store needs. Defined by the
// consumer so tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists sessions and their per-backend turn histories in
// PostgreSQL. Safe for concurrent use.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a session store backed by db.
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create creates a new session. An empty title is stored as NULL and
// read back as "". Titles longer than TitleMaxLength characters are
// truncated.
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	title = truncateTitle(title)

	var sess Session
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (title) VALUES ($1)
		 RETURNING id, COALESCE(title, ''), created_at, updated_at`,
		titlePtr,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return &sess, nil
}

// Get retrieves a session by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx,
		`SELECT id, COALESCE(title, ''), created_at, updated_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns sessions ordered by most recently updated.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, COALESCE(title, ''), created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and all its turns (CASCADE).
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Debug("deleted session", "id", id)
	return nil
}

// AppendTurns appends turns to one backend's history within a session
// and bumps the session's updated_at. All turns land in one
// transaction, so a failure never persists half an exchange.
func (s *Store) AppendTurns(ctx context.Context, sessionID uuid.UUID, backend string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning turn transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, turn := range turns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_turns (session_id, backend, role, content)
			 VALUES ($1, $2, $3, $4)`,
			sessionID, backend, string(turn.Role), turn.Content,
		); err != nil {
			return fmt.Errorf("appending turn for backend %q: %w", backend, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("touching session %s: %w", sessionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing turns for backend %q: %w", backend, err)
	}
	return nil
}

// truncateTitle cuts title to TitleMaxLength characters without
// splitting a multi-byte rune; the column is VARCHAR(100), which
// counts characters, not bytes.
func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= TitleMaxLength {
		return title
	}
	return string([]rune(title)[:TitleMaxLength])
}

// Turns loads one backend's ordered history for a session.
func (s *Store) Turns(ctx context.Context, sessionID uuid.UUID, backend string, limit int32) ([]Turn, error) {
	// Fetch the newest turns but return them in chronological order.
	rows, err := s.db.Query(ctx,
		`SELECT role, content FROM (
		     SELECT id, role, content FROM session_turns
		     WHERE session_id = $1 AND backend = $2
		     ORDER BY id DESC LIMIT $3
		 ) latest ORDER BY id ASC`,
		sessionID, backend, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading turns for backend %q: %w", backend, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}
		turns = append(turns, Turn{Role: Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

// ClearTurns removes every backend's history for a session in one
// statement, so no reader can observe a partially cleared state.
func (s *Store) ClearTurns(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM session_turns WHERE session_id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("clearing turns for session %s: %w", sessionID, err)
	}
	s.logger.Debug("cleared session history", "id", sessionID)
	return nil
}
