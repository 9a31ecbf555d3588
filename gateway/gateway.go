// Package gateway defines the interfaces to the embedding and completion
// models. Both are remote, latency-bearing and fallible; callers decide
// per call site whether a failure is fatal, retried, or degraded around.
package gateway

import "context"

// Embedder converts text to a fixed-dimension vector.
// Implementations: openai.Embedder (API-based), mock.Embedder (testing).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// ChatMessage is one turn handed to the completion model.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// Completer generates a continuation for a prepared context.
// Implementations: anthropic.Completer, mock.Completer (testing).
type Completer interface {
	Complete(ctx context.Context, system string, messages []ChatMessage) (string, error)
}
