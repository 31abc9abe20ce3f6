package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

// Turn roles. Assistant turns hold either a backend's raw answer (in
// per-backend histories) or the merged answer (in the transcript).
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptBackend is the pseudo-backend key under which the merged
// user-visible conversation is stored, alongside the per-backend
// histories.
const TranscriptBackend = "transcript"

// TitleMaxLength caps session titles.
const TitleMaxLength = 100

// Turn is one ordered message in a backend's dialogue history.
type Turn struct {
	Role    Role
	Content string
}

// Session is one conversation, holding independent per-backend
// histories plus the merged transcript.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
