package router

import (
	"context"

	"github.com/triadhq/triad/internal/source"
)

// routeSequential tries backends one at a time in priority order and
// stops at the first sufficient result. Insufficient or failed
// backends stay in the result list so the merger knows what was
// consulted.
func (r *Router) routeSequential(ctx context.Context, query string, hist Histories) []Result {
	order := r.sequentialOrder(query)

	results := make([]Result, 0, len(order))
	for _, e := range order {
		if ctx.Err() != nil {
			break
		}

		res := r.invoke(ctx, e, query, hist)
		results = append(results, res)
		if res.Sufficient {
			break
		}
		r.logger.Debug("falling back to next backend", "after", res.Source)
	}
	return results
}

// sequentialOrder returns the entries in consultation order. The data
// backend is promoted to the front for aggregation-style queries;
// otherwise the declared priority order stands.
func (r *Router) sequentialOrder(query string) []Entry {
	if !wantsData(query) {
		return r.entries
	}

	dataIdx := -1
	for i, e := range r.entries {
		if e.Backend.Name() == source.NameData {
			dataIdx = i
			break
		}
	}
	if dataIdx <= 0 {
		// Data backend absent or already first.
		return r.entries
	}

	order := make([]Entry, 0, len(r.entries))
	order = append(order, r.entries[dataIdx])
	order = append(order, r.entries[:dataIdx]...)
	order = append(order, r.entries[dataIdx+1:]...)
	r.logger.Debug("promoting data backend for aggregation query")
	return order
}
