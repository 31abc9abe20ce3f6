package router

import "strings"

// dataKeywords mark queries that are very likely answerable only from
// the relational database, so sequential routing consults it first
// instead of burning calls on the text backends.
var dataKeywords = []string{
	"how many",
	"count",
	"total",
	"average",
	"sum of",
	"number of",
	"list all",
}

// wantsData reports whether the query uses counting or aggregation
// vocabulary. Purely lexical, like the sufficiency check: a false
// positive only reorders the fallback chain, it never skips a backend.
func wantsData(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range dataKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
