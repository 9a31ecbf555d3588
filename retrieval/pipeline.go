// Package retrieval assembles the token-budgeted context for one turn:
// query rewrite, coarse vector search over document chunks, optional
// rerank, session-scoped summary search, and fixed-precedence assembly.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/gateway"
	"github.com/RuokeZhang/IntelliFlow/rerank"
	"github.com/RuokeZhang/IntelliFlow/session"
	"github.com/RuokeZhang/IntelliFlow/vector"
)

// Candidate is one document chunk in flight through the pipeline.
// RerankScore is nil until (and unless) the rerank stage scores it;
// final ordering uses rerank scores when present and coarse scores
// otherwise, never a mix.
type Candidate struct {
	ID          string
	Content     string
	CoarseScore float32
	RerankScore *float64
}

// SummaryHit is one memory summary retrieved for the current session.
type SummaryHit struct {
	ID         string
	Text       string
	Similarity float32
}

// Result is everything one query produced, including the degradation
// flags observability needs.
type Result struct {
	Query          string // the phrase actually used for retrieval
	Rewritten      bool   // false means the rewrite stage degraded to the raw utterance
	Chunks         []Candidate
	Summaries      []SummaryHit
	RerankDegraded bool // true when a configured reranker failed and coarse order was kept
	Window         []core.Message
	Context        string // assembled context, ready for the completion call
	Truncated      bool   // true when the budget dropped items
}

// Config holds the pipeline's tuning constants.
type Config struct {
	CoarseTopN  int // candidates fetched by coarse search
	TopK        int // chunks kept after rerank/truncation, TopK <= CoarseTopN
	SummaryTopK int // summaries fetched for the session
	Budget      int // assembled context budget, in characters
}

// Pipeline executes the retrieval stages for one query.
type Pipeline struct {
	embedder gateway.Embedder
	vectors  vector.Store
	sessions session.Store
	rewriter *Rewriter       // nil disables rewriting
	reranker rerank.Reranker // nil disables the rerank stage
	cfg      Config
	log      *slog.Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithRewriter enables the query-rewrite stage.
func WithRewriter(r *Rewriter) Option {
	return func(p *Pipeline) { p.rewriter = r }
}

// WithReranker enables the rerank stage.
func WithReranker(r rerank.Reranker) Option {
	return func(p *Pipeline) { p.reranker = r }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates a retrieval pipeline.
func New(embedder gateway.Embedder, vectors vector.Store, sessions session.Store, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder: embedder,
		vectors:  vectors,
		sessions: sessions,
		cfg:      cfg,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve runs every stage for one user utterance and returns the
// assembled context. Rewrite and rerank failures degrade; an embedding
// failure after retries fails the query, since neither chunk nor summary
// search can run without a vector.
func (p *Pipeline) Retrieve(ctx context.Context, sessionID, utterance string) (*Result, error) {
	window, err := p.sessions.Read(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session window: %w", err)
	}

	res := &Result{Query: utterance, Window: window}
	if p.rewriter != nil {
		res.Query, res.Rewritten = p.rewriter.Rewrite(ctx, utterance, window)
	}

	embedding, err := p.embedQuery(ctx, res.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	coarse, err := p.vectors.Query(ctx, vector.CollectionChunks, embedding, p.cfg.CoarseTopN, nil)
	if err != nil {
		return nil, fmt.Errorf("coarse retrieval: %w", err)
	}
	candidates := make([]Candidate, 0, len(coarse))
	for _, hit := range coarse {
		candidates = append(candidates, Candidate{
			ID:          hit.ID,
			Content:     hit.Content,
			CoarseScore: hit.Similarity,
		})
	}

	res.Chunks, res.RerankDegraded = p.rerankStage(ctx, res.Query, candidates)

	summaries, err := p.vectors.Query(ctx, vector.CollectionSummaries, embedding, p.cfg.SummaryTopK,
		map[string]string{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("summary retrieval: %w", err)
	}
	for _, hit := range summaries {
		res.Summaries = append(res.Summaries, SummaryHit{
			ID:         hit.ID,
			Text:       hit.Content,
			Similarity: hit.Similarity,
		})
	}

	res.Context, res.Truncated = assemble(res.Window, res.Summaries, res.Chunks, p.cfg.Budget)
	return res, nil
}

// rerankStage reorders candidates by rerank score descending and truncates
// to TopK. Without a reranker, or when it fails, the coarse-ordered list
// is truncated to TopK instead; the bool reports that degradation.
func (p *Pipeline) rerankStage(ctx context.Context, query string, candidates []Candidate) ([]Candidate, bool) {
	coarseTruncated := candidates
	if len(coarseTruncated) > p.cfg.TopK {
		coarseTruncated = coarseTruncated[:p.cfg.TopK]
	}

	if p.reranker == nil || len(candidates) < 2 {
		return coarseTruncated, false
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	ranked, err := p.reranker.Rerank(ctx, query, docs, p.cfg.TopK)
	if err != nil {
		p.log.Warn("rerank unavailable, keeping coarse order", "error", err)
		return coarseTruncated, true
	}

	reordered := make([]Candidate, 0, len(ranked))
	for _, hit := range ranked {
		c := candidates[hit.Index]
		score := hit.Score
		c.RerankScore = &score
		reordered = append(reordered, c)
	}
	if len(reordered) > p.cfg.TopK {
		reordered = reordered[:p.cfg.TopK]
	}
	return reordered, false
}

func (p *Pipeline) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var embedding []float32
	op := func() error {
		var err error
		embedding, err = p.embedder.Embed(ctx, query)
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return nil, err
	}
	return embedding, nil
}
