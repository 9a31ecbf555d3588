// Package mock provides deterministic gateway fakes for tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/RuokeZhang/IntelliFlow/gateway"
)

// Embedder generates deterministic unit vectors from a text hash.
// Equal texts always produce equal vectors, which is all the pipeline
// tests need; there is no real semantic similarity.
type Embedder struct {
	dims int
}

// NewEmbedder creates a mock embedder with the given dimensionality.
func NewEmbedder(dims int) *Embedder {
	return &Embedder{dims: dims}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (e *Embedder) Dimensions() int {
	return e.dims
}

// FailingEmbedder always returns err.
type FailingEmbedder struct {
	Dims int
	Err  error
}

func (f *FailingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, f.Err
}

func (f *FailingEmbedder) Dimensions() int {
	return f.Dims
}

// Completer replays scripted responses in order. Once the script is
// exhausted it keeps returning the last entry. A nil Err on an entry
// means success.
type Completer struct {
	mu      sync.Mutex
	script  []Reply
	pos     int
	Calls   []Call // every invocation, for assertions
}

// Reply is one scripted completion outcome.
type Reply struct {
	Text string
	Err  error
}

// Call records the arguments of one Complete invocation.
type Call struct {
	System   string
	Messages []gateway.ChatMessage
}

// NewCompleter creates a completer that replays the given replies.
func NewCompleter(replies ...Reply) *Completer {
	return &Completer{script: replies}
}

func (c *Completer) Complete(ctx context.Context, system string, messages []gateway.ChatMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, Call{System: system, Messages: messages})
	if len(c.script) == 0 {
		return "", nil
	}
	reply := c.script[c.pos]
	if c.pos < len(c.script)-1 {
		c.pos++
	}
	return reply.Text, reply.Err
}
