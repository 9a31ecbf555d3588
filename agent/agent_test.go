package agent_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RuokeZhang/IntelliFlow/agent"
	"github.com/RuokeZhang/IntelliFlow/gateway/mock"
	"github.com/RuokeZhang/IntelliFlow/publish"
	"github.com/RuokeZhang/IntelliFlow/retrieval"
	"github.com/RuokeZhang/IntelliFlow/session"
	sessionmem "github.com/RuokeZhang/IntelliFlow/session/memory"
	"github.com/RuokeZhang/IntelliFlow/summary"
	"github.com/RuokeZhang/IntelliFlow/vector"
)

// nullVector satisfies vector.Store with no data; these tests exercise
// the turn flow, not retrieval quality.
type nullVector struct{}

func (nullVector) Upsert(ctx context.Context, collection, id string, embedding []float32, content string, metadata map[string]string) error {
	return nil
}

func (nullVector) Query(ctx context.Context, collection string, embedding []float32, topN int, where map[string]string) ([]vector.Result, error) {
	return nil, nil
}

type fixture struct {
	orch      *agent.Orchestrator
	sessions  *sessionmem.Store
	workspace string
}

func newFixture(t *testing.T, replies ...mock.Reply) *fixture {
	t.Helper()
	sessions := sessionmem.New(time.Hour)
	embedder := mock.NewEmbedder(8)
	vectors := nullVector{}

	pipeline := retrieval.New(embedder, vectors, sessions,
		retrieval.Config{CoarseTopN: 4, TopK: 2, SummaryTopK: 2, Budget: 10_000})
	completer := mock.NewCompleter(replies...)
	summaries := summary.New(sessions, completer, embedder, vectors, 100)

	workspace := t.TempDir()
	local, err := publish.NewLocal(workspace)
	require.NoError(t, err)

	orch := agent.New(sessions, pipeline, completer, summaries, local, 100, 10*time.Minute)
	return &fixture{orch: orch, sessions: sessions, workspace: workspace}
}

func TestTurn_PlainPromptAnswersFromContext(t *testing.T) {
	f := newFixture(t, mock.Reply{Text: "the answer"})

	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{SessionID: "s1", Prompt: "what is chromem?"})
	require.NoError(t, err)
	require.Equal(t, "the answer", res.Output)
	require.False(t, res.AwaitingConfirmation)
	require.Nil(t, res.Published)
	require.NotNil(t, res.Retrieval)

	// Both sides of the exchange landed in the window.
	window, err := f.sessions.Read(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, window, 2)
	require.Equal(t, "what is chromem?", window[0].Content)
	require.Equal(t, "the answer", window[1].Content)
}

func TestTurn_RecognizedTargetPublishesImmediately(t *testing.T) {
	f := newFixture(t, mock.Reply{Text: "# Draft\n\nbody"})

	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "draft the release notes",
		Publish:   &agent.PublishRequest{Target: "local", Path: "notes/release.md"},
	})
	require.NoError(t, err)
	require.False(t, res.AwaitingConfirmation)
	require.NotNil(t, res.Published)

	data, err := os.ReadFile(filepath.Join(f.workspace, "notes", "release.md"))
	require.NoError(t, err)
	require.Equal(t, "# Draft\n\nbody", string(data))

	// No pending action was created.
	_, err = f.sessions.GetPending(context.Background(), "s1")
	require.ErrorIs(t, err, session.ErrNoPending)
}

func TestTurn_AmbiguousTargetDefersBehindQuestion(t *testing.T) {
	f := newFixture(t, mock.Reply{Text: "generated draft"})

	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "draft and publish this",
		Publish:   &agent.PublishRequest{Target: "", Path: "draft.md"},
	})
	require.NoError(t, err)
	require.True(t, res.AwaitingConfirmation)
	require.Equal(t, agent.PendingQuestion, res.Output)
	require.Nil(t, res.Published)

	pending, err := f.sessions.GetPending(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "generated draft", pending.Content)
	require.Equal(t, "draft.md", pending.Path)

	// Nothing was written while the question is outstanding.
	_, err = os.Stat(filepath.Join(f.workspace, "draft.md"))
	require.True(t, os.IsNotExist(err))
}

func TestTurn_ConfirmationExecutesDeferredActionOnce(t *testing.T) {
	f := newFixture(t, mock.Reply{Text: "deferred body"})

	_, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "publish my summary somewhere",
		Publish:   &agent.PublishRequest{Path: "deferred.md"},
	})
	require.NoError(t, err)

	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{SessionID: "s1", Prompt: " Local "})
	require.NoError(t, err)
	require.NotNil(t, res.Published)
	require.False(t, res.AwaitingConfirmation)

	// The published file carries the originally generated content, not
	// the confirmation utterance.
	data, err := os.ReadFile(filepath.Join(f.workspace, "deferred.md"))
	require.NoError(t, err)
	require.Equal(t, "deferred body", string(data))

	_, err = f.sessions.GetPending(context.Background(), "s1")
	require.ErrorIs(t, err, session.ErrNoPending)
}

func TestTurn_UnrecognizedAnswerAbandonsAndReprocesses(t *testing.T) {
	f := newFixture(t,
		mock.Reply{Text: "draft"},
		mock.Reply{Text: "fresh answer"},
	)

	_, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "publish something",
		Publish:   &agent.PublishRequest{},
	})
	require.NoError(t, err)

	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "actually, what time zone is Lisbon in?",
	})
	require.NoError(t, err)

	// Treated as a brand-new prompt: answered by the model, no publish.
	require.Equal(t, "fresh answer", res.Output)
	require.Nil(t, res.Published)
	require.False(t, res.AwaitingConfirmation)

	_, err = f.sessions.GetPending(context.Background(), "s1")
	require.ErrorIs(t, err, session.ErrNoPending)

	entries, err := os.ReadDir(f.workspace)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTurn_ExpiredPendingIsInvisible(t *testing.T) {
	f := newFixture(t,
		mock.Reply{Text: "draft"},
		mock.Reply{Text: "answer about the word local"},
	)

	_, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "publish this",
		Publish:   &agent.PublishRequest{},
	})
	require.NoError(t, err)

	now := time.Now()
	f.sessions.SetClock(func() time.Time { return now.Add(11 * time.Minute) })

	// "local" would have resolved the action; past the deadline it is an
	// ordinary prompt.
	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{SessionID: "s1", Prompt: "local"})
	require.NoError(t, err)
	require.Nil(t, res.Published)
	require.Equal(t, "answer about the word local", res.Output)
}

func TestTurn_RemoteWithoutGitHubFailsAndKeepsPending(t *testing.T) {
	f := newFixture(t, mock.Reply{Text: "draft"})

	_, err := f.orch.Turn(context.Background(), agent.TurnRequest{
		SessionID: "s1",
		Prompt:    "publish this",
		Publish:   &agent.PublishRequest{},
	})
	require.NoError(t, err)

	_, err = f.orch.Turn(context.Background(), agent.TurnRequest{SessionID: "s1", Prompt: "github"})
	require.ErrorIs(t, err, agent.ErrGitHubNotConfigured)

	// The record survives the failure, so a corrected answer still works.
	pending, err := f.sessions.GetPending(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "draft", pending.Content)

	res, err := f.orch.Turn(context.Background(), agent.TurnRequest{SessionID: "s1", Prompt: "local"})
	require.NoError(t, err)
	require.NotNil(t, res.Published)
}

func TestTurn_CompletionFailureIsFatal(t *testing.T) {
	f := newFixture(t, mock.Reply{Err: errors.New("model unavailable")})

	_, err := f.orch.Turn(context.Background(), agent.TurnRequest{SessionID: "s1", Prompt: "hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "completion")
}

func TestKeywordMatcher(t *testing.T) {
	m := agent.KeywordMatcher{}

	for _, answer := range []string{"local", "LOCAL", " Local "} {
		target, ok := m.Match(answer)
		require.True(t, ok, answer)
		require.Equal(t, "publish_local", string(target))
	}
	for _, answer := range []string{"github", "remote", "GitHub"} {
		target, ok := m.Match(answer)
		require.True(t, ok, answer)
		require.Equal(t, "publish_remote", string(target))
	}
	for _, answer := range []string{"", "the local one please", "yes"} {
		_, ok := m.Match(answer)
		require.False(t, ok, answer)
	}
}
