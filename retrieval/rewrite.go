package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/gateway"
)

const rewritePrompt = "Rewrite the user's latest message as one short standalone search phrase. " +
	"Resolve pronouns and references using the conversation excerpt. " +
	"Condense intent, drop filler. Reply with the phrase only."

// rewriteContextTurns is how many trailing window messages are offered to
// the model for pronoun resolution.
const rewriteContextTurns = 4

// Rewriter converts a raw utterance into a retrieval-optimized phrase.
// It is an optimization, never a dependency: any failure falls back to
// the raw utterance.
type Rewriter struct {
	completer gateway.Completer
	log       *slog.Logger
}

// NewRewriter creates a rewriter over the given completer.
func NewRewriter(completer gateway.Completer, log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{completer: completer, log: log}
}

// Rewrite returns the retrieval phrase and whether rewriting was applied.
func (r *Rewriter) Rewrite(ctx context.Context, utterance string, recent []core.Message) (string, bool) {
	var sb strings.Builder
	if n := len(recent); n > rewriteContextTurns {
		recent = recent[n-rewriteContextTurns:]
	}
	for _, m := range recent {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&sb, "\nLatest message: %s", utterance)

	phrase, err := r.completer.Complete(ctx, rewritePrompt, []gateway.ChatMessage{
		{Role: "user", Content: sb.String()},
	})
	if err != nil {
		r.log.Debug("query rewrite unavailable, using raw utterance", "error", err)
		return utterance, false
	}
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return utterance, false
	}
	return phrase, true
}
