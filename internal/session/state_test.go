package session

import (
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestCurrentIDRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	id := uuid.New()
	if err := SaveCurrentID(id); err != nil {
		t.Fatalf("SaveCurrentID: %v", err)
	}

	got, err := LoadCurrentID()
	if err != nil {
		t.Fatalf("LoadCurrentID: %v", err)
	}
	if got == nil || *got != id {
		t.Errorf("LoadCurrentID = %v, want %s", got, id)
	}
}

func TestLoadCurrentIDMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got, err := LoadCurrentID()
	if err != nil {
		t.Fatalf("LoadCurrentID: %v", err)
	}
	if got != nil {
		t.Errorf("LoadCurrentID = %v, want nil for missing state", got)
	}
}

func TestLoadCurrentIDInvalidContent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path, err := StateFilePath()
	if err != nil {
		t.Fatalf("StateFilePath: %v", err)
	}
	if err := os.WriteFile(path, []byte("not-a-uuid"), 0o600); err != nil {
		t.Fatalf("writing state file: %v", err)
	}

	if _, err := LoadCurrentID(); err == nil {
		t.Error("LoadCurrentID accepted garbage state file")
	}
}

func TestClearCurrentIDIdempotent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := SaveCurrentID(uuid.New()); err != nil {
		t.Fatalf("SaveCurrentID: %v", err)
	}
	if err := ClearCurrentID(); err != nil {
		t.Fatalf("ClearCurrentID: %v", err)
	}
	// Clearing again must not fail.
	if err := ClearCurrentID(); err != nil {
		t.Fatalf("ClearCurrentID (second): %v", err)
	}

	got, err := LoadCurrentID()
	if err != nil {
		t.Fatalf("LoadCurrentID: %v", err)
	}
	if got != nil {
		t.Errorf("LoadCurrentID = %v after clear, want nil", got)
	}
}
