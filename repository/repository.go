package repository

import "context"

// SearchCount is one trending entry: a normalized query and how often it has
// been searched.
type SearchCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Trending tracks which discovery queries are hot. Implementations are
// best-effort: a recording failure never affects the search itself.
type Trending interface {
	RecordSearch(ctx context.Context, term string, tags []string) error
	TopSearches(ctx context.Context, n int) ([]SearchCount, error)
}
