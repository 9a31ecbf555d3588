// Package rerank defines the optional second-stage scorer that reorders a
// small coarse candidate set by relevance to the query.
package rerank

import "context"

// Ranked is one rerank hit, referring back to a coarse candidate by its
// position in the submitted document list.
type Ranked struct {
	Index int
	Score float64
}

// Reranker scores documents against a query. Results come back ordered by
// score descending and truncated to topN. Failures are expected: the
// retrieval pipeline degrades to coarse ordering when a call errors.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranked, error)
}
