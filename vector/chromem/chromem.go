// Package chromem adapts chromem-go, a pure Go embedded vector database,
// to the vector.Store interface.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/RuokeZhang/IntelliFlow/vector"
)

// Store wraps a chromem DB with lazily created named collections.
type Store struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an in-memory store.
func New() *Store {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

// NewPersistent creates a store backed by a directory on disk.
func NewPersistent(path string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Store{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	// Embeddings are supplied by callers, distance is the default cosine.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

// Upsert writes a record; an existing id is replaced.
func (s *Store) Upsert(ctx context.Context, collection, id string, embedding []float32, content string, metadata map[string]string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document to %q: %w", collection, err)
	}
	return nil
}

// Query returns up to topN nearest records by cosine similarity descending.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, topN int, where map[string]string) ([]vector.Result, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection; clamp instead
	// of surfacing that as a caller error.
	n := topN
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	hits, err := col.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", collection, err)
	}

	results := make([]vector.Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, vector.Result{
			ID:         hit.ID,
			Similarity: hit.Similarity,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
		})
	}
	return results, nil
}
