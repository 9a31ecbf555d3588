// Command intelliflow runs a minimal REPL over the context-assembly core.
// Each line is one turn for a single session. A "publish <target> [path]"
// line marks the next answer for publication; an unknown target triggers
// the confirmation flow. Backends are configured through INTELLIFLOW_*
// env vars.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/RuokeZhang/IntelliFlow/agent"
	"github.com/RuokeZhang/IntelliFlow/config"
	"github.com/RuokeZhang/IntelliFlow/gateway"
	gwanthropic "github.com/RuokeZhang/IntelliFlow/gateway/anthropic"
	gwopenai "github.com/RuokeZhang/IntelliFlow/gateway/openai"
	"github.com/RuokeZhang/IntelliFlow/publish"
	"github.com/RuokeZhang/IntelliFlow/rerank/cohere"
	"github.com/RuokeZhang/IntelliFlow/retrieval"
	"github.com/RuokeZhang/IntelliFlow/session"
	sessionmem "github.com/RuokeZhang/IntelliFlow/session/memory"
	sessionredis "github.com/RuokeZhang/IntelliFlow/session/redis"
	"github.com/RuokeZhang/IntelliFlow/summary"
	"github.com/RuokeZhang/IntelliFlow/vector/chromem"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("INTELLIFLOW_ANTHROPIC_API_KEY is required")
	}

	ctx := context.Background()

	var sessions session.Store
	if cfg.RedisURL != "" {
		store, err := sessionredis.New(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return err
		}
		defer store.Close()
		sessions = store
		log.Info("session store", "backend", "redis")
	} else {
		sessions = sessionmem.New(cfg.SessionTTL)
		log.Warn("session store is in-process; state is lost on restart")
	}

	completer := gwanthropic.New(cfg.AnthropicAPIKey, cfg.Model, cfg.MaxTokens)

	var embedder gateway.Embedder = gwopenai.New(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	cached, err := gateway.NewCachedEmbedder(embedder, 64<<20)
	if err != nil {
		return err
	}
	defer cached.Close()
	embedder = cached

	vectors := chromem.New()

	summaries := summary.New(sessions, completer, embedder, vectors, cfg.SummaryThreshold,
		summary.WithLogger(log))

	pipelineOpts := []retrieval.Option{
		retrieval.WithRewriter(retrieval.NewRewriter(completer, log)),
		retrieval.WithLogger(log),
	}
	if cfg.CohereAPIKey != "" {
		pipelineOpts = append(pipelineOpts,
			retrieval.WithReranker(cohere.New(cfg.CohereAPIKey, cfg.RerankModel)))
	} else {
		log.Info("rerank disabled; coarse ordering will be used")
	}
	pipeline := retrieval.New(embedder, vectors, sessions, retrieval.Config{
		CoarseTopN:  cfg.CoarseTopN,
		TopK:        cfg.TopK,
		SummaryTopK: cfg.SummaryTopK,
		Budget:      cfg.ContextBudget,
	}, pipelineOpts...)

	local, err := publish.NewLocal(cfg.LocalWorkspace)
	if err != nil {
		return err
	}

	agentOpts := []agent.Option{agent.WithLogger(log)}
	if cfg.GitHubToken != "" && cfg.GitHubRepo != "" {
		gh, err := publish.NewGitHub(cfg.GitHubToken, cfg.GitHubRepo, cfg.GitHubBranch)
		if err != nil {
			return err
		}
		agentOpts = append(agentOpts, agent.WithGitHub(gh, cfg.GitHubBasePath))
	}
	orchestrator := agent.New(sessions, pipeline, completer, summaries, local,
		cfg.WindowSize, cfg.PendingTTL, agentOpts...)

	sessionID := uuid.New().String()
	fmt.Printf("session %s. Type a message, \"publish <target> [path]\" to publish the next answer, ctrl-d to quit.\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	var nextPublish *agent.PublishRequest
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "publish"); ok && (rest == "" || rest[0] == ' ') {
			fields := strings.Fields(rest)
			nextPublish = &agent.PublishRequest{}
			if len(fields) > 0 {
				nextPublish.Target = fields[0]
			}
			if len(fields) > 1 {
				nextPublish.Path = fields[1]
			}
			fmt.Println("next answer will be published")
			continue
		}

		result, err := orchestrator.Turn(ctx, agent.TurnRequest{
			SessionID: sessionID,
			Prompt:    line,
			Publish:   nextPublish,
		})
		nextPublish = nil
		if err != nil {
			log.Error("turn failed", "error", err)
			continue
		}

		fmt.Println(result.Output)
		if result.Published != nil {
			fmt.Printf("[published to %s", result.Published.Path)
			if result.Published.URL != "" {
				fmt.Printf(", %s", result.Published.URL)
			}
			fmt.Println("]")
		}
	}
}
