package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestHistoryAppendAndTurns(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append("wiki", Turn{Role: RoleUser, Content: "what is the deploy process?"})
	h.Append("wiki", Turn{Role: RoleAssistant, Content: "see the release runbook"})
	h.Append("code", Turn{Role: RoleUser, Content: "what is the deploy process?"})

	wiki := h.Turns("wiki")
	if len(wiki) != 2 {
		t.Fatalf("wiki turns = %d, want 2", len(wiki))
	}
	if wiki[0].Role != RoleUser || wiki[1].Role != RoleAssistant {
		t.Errorf("turn order wrong: %+v", wiki)
	}

	if got := h.Len("code"); got != 1 {
		t.Errorf("code turns = %d, want 1", got)
	}
	if got := h.Turns("data"); got != nil {
		t.Errorf("unknown backend should have nil turns, got %v", got)
	}
}

func TestHistoryTurnsReturnsCopy(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append("wiki", Turn{Role: RoleUser, Content: "original"})

	turns := h.Turns("wiki")
	turns[0].Content = "mutated"

	if got := h.Turns("wiki")[0].Content; got != "original" {
		t.Errorf("history mutated through returned slice: %q", got)
	}
}

func TestHistoryClearIsAtomic(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	for _, backend := range []string{"wiki", "code", "data"} {
		h.Append(backend, Turn{Role: RoleUser, Content: "q"})
	}

	h.Clear()

	// No backend may retain turns after Clear: a caller never sees a
	// mix of cleared and uncleared histories.
	for _, backend := range []string{"wiki", "code", "data"} {
		if got := h.Len(backend); got != 0 {
			t.Errorf("%s retained %d turns after Clear", backend, got)
		}
	}
}

func TestHistoryConcurrentReadersOneWriter(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	var wg sync.WaitGroup

	// One writer per backend (matching the router's single-writer
	// guarantee), many concurrent readers.
	for _, backend := range []string{"wiki", "code", "data"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				h.Append(backend, Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)})
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = h.Turns("wiki")
				_ = h.Len("code")
			}
		}()
	}

	wg.Wait()

	for _, backend := range []string{"wiki", "code", "data"} {
		if got := h.Len(backend); got != 100 {
			t.Errorf("%s turns = %d, want 100", backend, got)
		}
	}
}
