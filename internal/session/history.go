package session

import "sync"

// History holds the in-memory per-backend dialogue of one session.
//
// Each backend keeps its own independent ordered turn list so that it
// has continuity across user turns without seeing the other backends'
// exchanges. The router is the only writer (after a turn completes);
// reads return copies, so callers never observe concurrent mutation.
type History struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{turns: make(map[string][]Turn)}
}

// Turns returns a copy of the ordered turns for one backend.
func (h *History) Turns(backend string) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src := h.turns[backend]
	if len(src) == 0 {
		return nil
	}
	out := make([]Turn, len(src))
	copy(out, src)
	return out
}

// Append adds turns to one backend's history.
func (h *History) Append(backend string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[backend] = append(h.turns[backend], turns...)
}

// Clear empties every backend's history. The single lock makes the
// operation atomic from a caller's point of view: no reader observes a
// mix of cleared and uncleared backends.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = make(map[string][]Turn)
}

// Len returns the number of turns stored for one backend.
func (h *History) Len(backend string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns[backend])
}
