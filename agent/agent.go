// Package agent orchestrates one conversational turn: pending-action
// resolution, retrieval, completion, window bookkeeping, summarization,
// and the publish decision.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/gateway"
	"github.com/RuokeZhang/IntelliFlow/publish"
	"github.com/RuokeZhang/IntelliFlow/retrieval"
	"github.com/RuokeZhang/IntelliFlow/session"
	"github.com/RuokeZhang/IntelliFlow/summary"
)

const systemPrompt = "You are an assistant for knowledge retrieval and publishing. " +
	"Answer from the provided context when it is relevant and say so when it is not. " +
	"When asked to draft content for publication, produce the complete document."

// ErrGitHubNotConfigured is returned when a turn resolves to a remote
// publish but no GitHub publisher was configured.
var ErrGitHubNotConfigured = errors.New("agent: github publisher not configured")

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	SessionID string
	Prompt    string
	// Publish, when set, asks for the generated content to be published.
	// An empty or unrecognized Target defers the decision to the user via
	// a pending action.
	Publish *PublishRequest
}

// PublishRequest names where and under what path to publish.
type PublishRequest struct {
	Target string // "local", "github"/"remote", or empty when unknown
	Path   string // optional; defaulted per target when empty
}

// Publication records an executed publish.
type Publication struct {
	Target core.ActionType
	Path   string
	URL    string // set for remote publishes
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	SessionID string
	Output    string
	// AwaitingConfirmation is true when Output is a clarifying question
	// and a pending action was stored instead of executing a tool.
	AwaitingConfirmation bool
	Published            *Publication
	// Retrieval carries the pipeline's observability flags. Nil for turns
	// that only resolved a pending action.
	Retrieval *retrieval.Result
}

// Orchestrator wires the turn flow together.
type Orchestrator struct {
	sessions   session.Store
	pipeline   *retrieval.Pipeline
	completer  gateway.Completer
	summaries  *summary.Pipeline
	local      *publish.Local
	github     *publish.GitHub // nil when not configured
	matcher    TargetMatcher
	windowSize int
	pendingTTL time.Duration
	basePath   string // default directory for remote publishes
	log        *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithGitHub enables remote publishing.
func WithGitHub(g *publish.GitHub, basePath string) Option {
	return func(o *Orchestrator) {
		o.github = g
		o.basePath = basePath
	}
}

// WithMatcher replaces the default keyword matcher.
func WithMatcher(m TargetMatcher) Option {
	return func(o *Orchestrator) { o.matcher = m }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an orchestrator.
func New(sessions session.Store, pipeline *retrieval.Pipeline, completer gateway.Completer, summaries *summary.Pipeline, local *publish.Local, windowSize int, pendingTTL time.Duration, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:   sessions,
		pipeline:   pipeline,
		completer:  completer,
		summaries:  summaries,
		local:      local,
		matcher:    KeywordMatcher{},
		windowSize: windowSize,
		pendingTTL: pendingTTL,
		basePath:   "content",
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Turn processes one user turn. A live pending action is checked before
// anything else; otherwise the turn runs retrieval, completion, window
// bookkeeping and the publish decision.
func (o *Orchestrator) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	pending, err := o.sessions.GetPending(ctx, req.SessionID)
	switch {
	case err == nil:
		res, handled, err := o.handlePending(ctx, req, pending)
		if err != nil || handled {
			return res, err
		}
		// Abandoned: fall through and process the prompt fresh.
	case errors.Is(err, session.ErrNoPending):
		// Nothing deferred; normal turn.
	default:
		return nil, fmt.Errorf("check pending action: %w", err)
	}

	ret, err := o.pipeline.Retrieve(ctx, req.SessionID, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	// The final completion is fatal on failure and never auto-retried; a
	// retry here could double side effects downstream.
	answer, err := o.completer.Complete(ctx, systemPrompt+"\n\n"+ret.Context, []gateway.ChatMessage{
		{Role: "user", Content: req.Prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	o.remember(ctx, req.SessionID, core.RoleUser, req.Prompt)
	o.remember(ctx, req.SessionID, core.RoleAssistant, answer)

	result := &TurnResult{
		SessionID: req.SessionID,
		Output:    answer,
		Retrieval: ret,
	}

	if req.Publish != nil {
		if err := o.decidePublish(ctx, req, answer, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// handlePending runs the AWAITING_CONFIRMATION transitions. The bool is
// false when the flow was abandoned and the turn should be reprocessed.
func (o *Orchestrator) handlePending(ctx context.Context, req TurnRequest, pending *core.PendingAction) (*TurnResult, bool, error) {
	target, outcome := resolvePending(o.matcher, req.Prompt)
	if outcome == abandoned {
		// Unrecognized answer abandons the flow rather than re-asking.
		o.log.Info("pending action abandoned by unrecognized answer",
			"session", req.SessionID, "action", pending.ID)
		if err := o.sessions.ClearPending(ctx, req.SessionID); err != nil {
			return nil, false, fmt.Errorf("clear pending action: %w", err)
		}
		return nil, false, nil
	}

	pub, err := o.execute(ctx, target, pending.Path, pending.Content)
	if err != nil {
		// Publish failed: surface the turn as failed and keep the record
		// so a corrected answer can still resolve it before the TTL.
		return nil, true, err
	}
	if err := o.sessions.ClearPending(ctx, req.SessionID); err != nil {
		return nil, true, fmt.Errorf("clear pending action: %w", err)
	}

	o.remember(ctx, req.SessionID, core.RoleTool,
		fmt.Sprintf("%s: published to %s", target, pub.Path))

	o.log.Info("pending action resolved",
		"session", req.SessionID, "action", pending.ID, "target", target)
	return &TurnResult{
		SessionID: req.SessionID,
		Output:    fmt.Sprintf("Published to %s.", pub.Path),
		Published: pub,
	}, true, nil
}

// decidePublish executes a recognized target immediately or defers an
// ambiguous one behind a pending action.
func (o *Orchestrator) decidePublish(ctx context.Context, req TurnRequest, answer string, result *TurnResult) error {
	target, ok := o.matcher.Match(req.Publish.Target)
	if !ok {
		action := &core.PendingAction{
			ID:        uuid.New().String(),
			SessionID: req.SessionID,
			Content:   answer,
			Path:      req.Publish.Path,
			Question:  PendingQuestion,
			CreatedAt: time.Now(),
		}
		if err := o.sessions.SetPending(ctx, req.SessionID, action, o.pendingTTL); err != nil {
			return fmt.Errorf("store pending action: %w", err)
		}
		o.log.Info("publish target ambiguous, awaiting confirmation",
			"session", req.SessionID, "action", action.ID)
		result.Output = action.Question
		result.AwaitingConfirmation = true
		return nil
	}

	pub, err := o.execute(ctx, target, req.Publish.Path, answer)
	if err != nil {
		return err
	}
	o.remember(ctx, req.SessionID, core.RoleTool,
		fmt.Sprintf("%s: published to %s", target, pub.Path))
	result.Published = pub
	return nil
}

// execute invokes the chosen publish target with the stored payload.
func (o *Orchestrator) execute(ctx context.Context, target core.ActionType, path, content string) (*Publication, error) {
	switch target {
	case core.PublishLocal:
		if path == "" {
			path = "output.md"
		}
		written, err := o.local.Write(path, content)
		if err != nil {
			return nil, fmt.Errorf("local publish: %w", err)
		}
		return &Publication{Target: core.PublishLocal, Path: written}, nil

	case core.PublishRemote:
		if o.github == nil {
			return nil, ErrGitHubNotConfigured
		}
		if path == "" {
			path = o.basePath + "/output.md"
		}
		url, err := o.github.Publish(ctx, path, content, "publish from intelliflow")
		if err != nil {
			return nil, fmt.Errorf("github publish: %w", err)
		}
		return &Publication{Target: core.PublishRemote, Path: path, URL: url}, nil
	}
	return nil, fmt.Errorf("unknown publish target %q", target)
}

// remember appends one message to the window and feeds the resulting
// overflow to the summary pipeline. Summarization failure never fails
// the turn; the span stays buffered for the next overflow.
func (o *Orchestrator) remember(ctx context.Context, sessionID string, role core.Role, content string) {
	msg := core.Message{Role: role, Content: content, Timestamp: time.Now()}
	_, overflow, err := o.sessions.AppendAndTrim(ctx, sessionID, msg, o.windowSize)
	if err != nil {
		o.log.Error("window append failed", "session", sessionID, "error", err)
		return
	}
	if err := o.summaries.OnAppend(ctx, sessionID, overflow); err != nil {
		o.log.Warn("summary pipeline deferred", "session", sessionID, "error", err)
	}
}
