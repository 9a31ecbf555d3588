// Package vector defines the similarity-search backend used for document
// chunks and memory summaries. Implementations hold (id, vector, content,
// metadata) tuples in named collections and answer top-N nearest queries.
//
// Ordering contract: results are returned by cosine similarity descending,
// best match first. All pipeline stages assume exactly this ordering.
package vector

import "context"

// Collection names used by the core. Ingestion writes chunks; the summary
// pipeline writes summaries; retrieval reads both.
const (
	CollectionChunks    = "chunks"
	CollectionSummaries = "summaries"
)

// Result is one similarity-search hit.
type Result struct {
	ID         string
	Similarity float32 // cosine similarity, higher is closer
	Content    string
	Metadata   map[string]string
}

// Store is the vector storage backend interface.
// Implementations: chromem.Store (embedded).
type Store interface {
	// Upsert writes a record. Writing an existing id replaces the record,
	// which makes retried pipeline runs idempotent.
	Upsert(ctx context.Context, collection, id string, embedding []float32, content string, metadata map[string]string) error

	// Query returns up to topN nearest records, optionally filtered by
	// exact-match metadata. An empty collection yields an empty result,
	// not an error.
	Query(ctx context.Context, collection string, embedding []float32, topN int, where map[string]string) ([]Result, error)
}
