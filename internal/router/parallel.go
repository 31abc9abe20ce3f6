package router

import (
	"context"
	"fmt"
	"sync"
)

// routeParallel consults every backend concurrently and waits for all
// of them before returning. Results come back in the declared priority
// order regardless of completion order, so merged output stays
// deterministic. A failing or panicking backend contributes an
// insufficient result and never cancels its siblings.
func (r *Router) routeParallel(ctx context.Context, query string, hist Histories) []Result {
	results := make([]Result, len(r.entries))

	var wg sync.WaitGroup
	for i, e := range r.entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("backend panicked",
						"backend", e.Backend.Name(),
						"panic", fmt.Sprint(rec),
					)
					results[i] = Result{Source: e.Backend.Name()}
				}
			}()
			results[i] = r.invoke(ctx, e, query, hist)
		}()
	}
	wg.Wait()

	return results
}
