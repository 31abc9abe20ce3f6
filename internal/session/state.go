package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	stateDir  = ".triad"
	stateFile = "current_session"
)

// StateFilePath returns the path to the current-session state file,
// creating ~/.triad if needed.
func StateFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(homeDir, stateDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	return filepath.Join(dir, stateFile), nil
}

// withStateLock runs fn while holding an advisory lock next to the
// state file, so concurrent CLI invocations don't interleave reads and
// writes of the current session ID.
func withStateLock(path string, fn func() error) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

// LoadCurrentID loads the active session ID. Returns (nil, nil) when
// no current session is recorded.
func LoadCurrentID() (*uuid.UUID, error) {
	path, err := StateFilePath()
	if err != nil {
		return nil, err
	}

	var id *uuid.UUID
	err = withStateLock(path, func() error {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return nil
			}
			return fmt.Errorf("reading state file: %w", readErr)
		}

		raw := strings.TrimSpace(string(data))
		if raw == "" {
			return nil
		}

		parsed, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return fmt.Errorf("invalid session ID in state file: %w", parseErr)
		}
		id = &parsed
		return nil
	})
	return id, err
}

// SaveCurrentID records sessionID as the active session.
func SaveCurrentID(sessionID uuid.UUID) error {
	path, err := StateFilePath()
	if err != nil {
		return err
	}
	return withStateLock(path, func() error {
		if writeErr := os.WriteFile(path, []byte(sessionID.String()), 0o600); writeErr != nil {
			return fmt.Errorf("writing state file: %w", writeErr)
		}
		return nil
	})
}

// ClearCurrentID forgets the active session. Idempotent.
func ClearCurrentID() error {
	path, err := StateFilePath()
	if err != nil {
		return err
	}
	return withStateLock(path, func() error {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("removing state file: %w", rmErr)
		}
		return nil
	})
}
