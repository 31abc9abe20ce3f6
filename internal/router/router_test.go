package router

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend counts invocations and returns a canned answer or error.
type fakeBackend struct {
	name  string
	text  string
	err   error
	panic bool
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Ask(ctx context.Context, query string, history []session.Turn) (string, error) {
	f.calls.Add(1)
	if f.panic {
		panic("backend blew up")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

// acceptAll treats every non-empty answer as sufficient.
var acceptAll = source.Classifier{MinLength: 1}

func newRouter(t *testing.T, policy string, backends ...*fakeBackend) *Router {
	t.Helper()
	entries := make([]Entry, len(backends))
	for i, b := range backends {
		entries[i] = Entry{Backend: b, Classifier: acceptAll}
	}
	r, err := New(entries, Config{Policy: policy})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Config{Policy: PolicySequential}); !errors.Is(err, ErrNoBackends) {
		t.Errorf("empty entries: err = %v, want ErrNoBackends", err)
	}

	entries := []Entry{{Backend: &fakeBackend{name: source.NameWiki}}}
	if _, err := New(entries, Config{Policy: "round-robin"}); err == nil {
		t.Error("unknown policy accepted")
	}
}

func TestSequentialStopsAtFirstSufficient(t *testing.T) {
	t.Parallel()

	wiki := &fakeBackend{name: source.NameWiki, text: "the deploy process is documented in the release runbook"}
	code := &fakeBackend{name: source.NameCode}
	data := &fakeBackend{name: source.NameData}

	r := newRouter(t, PolicySequential, wiki, code, data)
	results := r.Route(t.Context(), "what is the deploy process?", session.NewHistory())

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Source != source.NameWiki || !results[0].Sufficient {
		t.Errorf("unexpected result: %+v", results[0])
	}
	if code.calls.Load() != 0 || data.calls.Load() != 0 {
		t.Errorf("later backends invoked after sufficient answer: code=%d data=%d",
			code.calls.Load(), data.calls.Load())
	}
}

func TestSequentialFallsThroughInsufficientAndFailed(t *testing.T) {
	t.Parallel()

	wiki := &fakeBackend{name: source.NameWiki, text: ""} // insufficient
	code := &fakeBackend{name: source.NameCode, err: errors.New("api unreachable")}
	data := &fakeBackend{name: source.NameData, text: "42 open incidents"}

	r := newRouter(t, PolicySequential, wiki, code, data)
	results := r.Route(t.Context(), "what is going on?", session.NewHistory())

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3 (all consulted)", len(results))
	}
	if results[0].Sufficient || results[1].Sufficient {
		t.Errorf("wiki/code should be insufficient: %+v", results[:2])
	}
	if !results[2].Sufficient || results[2].Text != "42 open incidents" {
		t.Errorf("data result wrong: %+v", results[2])
	}
}

func TestSequentialPromotesDataForAggregationQueries(t *testing.T) {
	t.Parallel()

	wiki := &fakeBackend{name: source.NameWiki, text: "some wiki page"}
	code := &fakeBackend{name: source.NameCode, text: "some repo"}
	data := &fakeBackend{name: source.NameData, text: "row count is 17"}

	r := newRouter(t, PolicySequential, wiki, code, data)
	results := r.Route(t.Context(), "How many users signed up last week?", session.NewHistory())

	if len(results) != 1 || results[0].Source != source.NameData {
		t.Fatalf("expected data consulted first and only, got %+v", results)
	}
	if wiki.calls.Load() != 0 || code.calls.Load() != 0 {
		t.Errorf("text backends invoked for aggregation query")
	}
}

func TestParallelInvokesAllExactlyOnce(t *testing.T) {
	t.Parallel()

	wiki := &fakeBackend{name: source.NameWiki, text: "wiki answer"}
	code := &fakeBackend{name: source.NameCode, err: errors.New("rate limited")}
	data := &fakeBackend{name: source.NameData, text: "data answer"}

	r := newRouter(t, PolicyParallel, wiki, code, data)
	results := r.Route(t.Context(), "tell me everything", session.NewHistory())

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// Priority order preserved regardless of completion order.
	for i, want := range source.Priority() {
		if results[i].Source != want {
			t.Errorf("results[%d].Source = %q, want %q", i, results[i].Source, want)
		}
	}
	for _, b := range []*fakeBackend{wiki, code, data} {
		if got := b.calls.Load(); got != 1 {
			t.Errorf("%s invoked %d times, want 1", b.name, got)
		}
	}
	if results[1].Sufficient {
		t.Error("failed backend classified as sufficient")
	}
	if !results[0].Sufficient || !results[2].Sufficient {
		t.Errorf("healthy backends should be sufficient: %+v", results)
	}
}

func TestParallelSurvivesPanickingBackend(t *testing.T) {
	t.Parallel()

	wiki := &fakeBackend{name: source.NameWiki, panic: true}
	data := &fakeBackend{name: source.NameData, text: "still standing"}

	r := newRouter(t, PolicyParallel, wiki, data)
	results := r.Route(t.Context(), "anything", session.NewHistory())

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Sufficient || results[0].Text != "" {
		t.Errorf("panicked backend should yield empty insufficient result: %+v", results[0])
	}
	if !results[1].Sufficient {
		t.Errorf("sibling backend lost its result: %+v", results[1])
	}
}

func TestBackendTimeoutDegradesToInsufficient(t *testing.T) {
	t.Parallel()

	slow := &fakeBackend{name: source.NameWiki, text: "late answer", delay: time.Second}
	fast := &fakeBackend{name: source.NameData, text: "on time"}

	entries := []Entry{
		{Backend: slow, Classifier: acceptAll},
		{Backend: fast, Classifier: acceptAll},
	}
	r, err := New(entries, Config{Policy: PolicyParallel, BackendTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := r.Route(t.Context(), "anything", session.NewHistory())
	if results[0].Sufficient {
		t.Errorf("timed-out backend should be insufficient: %+v", results[0])
	}
	if !results[1].Sufficient {
		t.Errorf("fast backend should be unaffected: %+v", results[1])
	}
}

func TestWantsData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  bool
	}{
		{"How many users signed up last week?", true},
		{"what is the total revenue", true},
		{"list all open incidents", true},
		{"what is the deploy process?", false},
		{"where is the retry logic implemented?", false},
	}
	for _, tt := range tests {
		if got := wantsData(tt.query); got != tt.want {
			t.Errorf("wantsData(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
