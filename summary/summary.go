// Package summary condenses evicted window messages into durable,
// vectorized memory summaries.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/gateway"
	"github.com/RuokeZhang/IntelliFlow/session"
	"github.com/RuokeZhang/IntelliFlow/vector"
)

// summaryNamespace seeds UUIDv5 derivation so a span always maps to the
// same summary id, making crash-recovery reruns upserts instead of
// duplicates.
var summaryNamespace = uuid.MustParse("5fb9a9a2-6c2f-4f0b-9a15-3c6d1f0e8a47")

const summarizePrompt = "Condense the following conversation into a short factual summary " +
	"that preserves names, decisions, and open questions. It will be used for " +
	"later retrieval, so keep concrete terms. Reply with the summary only."

// Pipeline turns the overflow buffer into MemorySummary records once it
// reaches the configured threshold.
type Pipeline struct {
	store     session.Store
	completer gateway.Completer
	embedder  gateway.Embedder
	vectors   vector.Store
	threshold int
	retries   uint64
	log       *slog.Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithRetries overrides the per-gateway-call retry cap (default 3).
func WithRetries(n uint64) Option {
	return func(p *Pipeline) { p.retries = n }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates a pipeline that fires at the given unsummarized-span
// threshold.
func New(store session.Store, completer gateway.Completer, embedder gateway.Embedder, vectors vector.Store, threshold int, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		completer: completer,
		embedder:  embedder,
		vectors:   vectors,
		threshold: threshold,
		retries:   3,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnAppend is called after every AppendAndTrim with the returned overflow
// length. Below threshold it does nothing. At or above, it summarizes the
// whole buffered span, persists the summary, and consumes exactly the
// span it read.
//
// On gateway failure the span stays in the buffer, so the next overflow
// retries the combined span; the live window is never blocked either way.
func (p *Pipeline) OnAppend(ctx context.Context, sessionID string, overflow int) error {
	if overflow < p.threshold {
		return nil
	}

	span, err := p.store.PeekOverflow(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read overflow span: %w", err)
	}
	if len(span) == 0 {
		return nil
	}

	rec, err := p.summarize(ctx, sessionID, span)
	if err != nil {
		p.log.Warn("summarization failed, span retained for retry",
			"session", sessionID, "span", len(span), "error", err)
		return err
	}

	if err := p.store.ConsumeOverflow(ctx, sessionID, len(span)); err != nil {
		// The summary is durable; a consume failure means the next run
		// re-summarizes the same span onto the same id. Harmless.
		return fmt.Errorf("consume overflow span: %w", err)
	}

	p.log.Info("memory summary persisted",
		"session", sessionID, "id", rec.ID, "covered", len(span))
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, sessionID string, span []core.Message) (*core.MemorySummary, error) {
	text, err := p.completeWithRetry(ctx, span)
	if err != nil {
		return nil, fmt.Errorf("summarize span: %w", err)
	}

	embedding, err := p.embedWithRetry(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed summary: %w", err)
	}

	rec := &core.MemorySummary{
		ID:        SpanID(sessionID, span),
		SessionID: sessionID,
		From:      span[0].Timestamp,
		To:        span[len(span)-1].Timestamp,
		Text:      text,
		CreatedAt: time.Now(),
	}

	metadata := map[string]string{
		"session_id": rec.SessionID,
		"from":       rec.From.Format(time.RFC3339Nano),
		"to":         rec.To.Format(time.RFC3339Nano),
		"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if err := p.vectors.Upsert(ctx, vector.CollectionSummaries, rec.ID, embedding, rec.Text, metadata); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}
	return rec, nil
}

func (p *Pipeline) completeWithRetry(ctx context.Context, span []core.Message) (string, error) {
	var lines []string
	for _, m := range span {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	req := []gateway.ChatMessage{{Role: "user", Content: strings.Join(lines, "\n")}}

	var text string
	op := func() error {
		var err error
		text, err = p.completer.Complete(ctx, summarizePrompt, req)
		return err
	}
	if err := backoff.Retry(op, p.policy(ctx)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32
	op := func() error {
		var err error
		embedding, err = p.embedder.Embed(ctx, text)
		return err
	}
	if err := backoff.Retry(op, p.policy(ctx)); err != nil {
		return nil, err
	}
	return embedding, nil
}

func (p *Pipeline) policy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, p.retries), ctx)
}

// SpanID derives the deterministic summary id for a span. The id depends
// only on the session and the span boundaries, never on wall-clock time.
func SpanID(sessionID string, span []core.Message) string {
	first := span[0].Timestamp.UnixNano()
	last := span[len(span)-1].Timestamp.UnixNano()
	seed := fmt.Sprintf("%s|%d|%d|%d", sessionID, first, last, len(span))
	return uuid.NewSHA1(summaryNamespace, []byte(seed)).String()
}
