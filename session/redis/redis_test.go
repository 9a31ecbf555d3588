package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/session"
	"github.com/RuokeZhang/IntelliFlow/session/redis"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis.NewFromClient(client, 30*time.Minute), mr
}

func msg(content string) core.Message {
	return core.Message{Role: core.RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

func contents(messages []core.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

func TestScript_WindowCapOverflowScenario(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	// Cap 3, threshold-2 walkthrough: A..E leaves window {C,D,E} and an
	// overflow span {A,B}.
	var lastOverflow int
	for _, content := range []string{"A", "B", "C", "D", "E"} {
		evicted, overflow, err := store.AppendAndTrim(ctx, "s1", msg(content), 3)
		require.NoError(t, err)
		switch content {
		case "D":
			require.Equal(t, []string{"A"}, contents(evicted))
		case "E":
			require.Equal(t, []string{"B"}, contents(evicted))
		default:
			require.Empty(t, evicted)
		}
		lastOverflow = overflow
	}
	require.Equal(t, 2, lastOverflow)

	window, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"C", "D", "E"}, contents(window))

	span, err := store.PeekOverflow(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, contents(span))

	require.NoError(t, store.ConsumeOverflow(ctx, "s1", 2))
	span, err = store.PeekOverflow(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, span)
}

func TestScript_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	_, _, err := store.AppendAndTrim(ctx, "s1", msg("one"), 5)
	require.NoError(t, err)
	_, _, err = store.AppendAndTrim(ctx, "s2", msg("two"), 5)
	require.NoError(t, err)

	w1, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"one"}, contents(w1))

	w2, err := store.Read(ctx, "s2")
	require.NoError(t, err)
	require.Equal(t, []string{"two"}, contents(w2))
}

func TestScript_SetsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	_, _, err := store.AppendAndTrim(ctx, "s1", msg("A"), 1)
	require.NoError(t, err)
	_, _, err = store.AppendAndTrim(ctx, "s1", msg("B"), 1)
	require.NoError(t, err)

	require.Greater(t, mr.TTL("intelliflow:session:s1"), time.Duration(0))
	require.Greater(t, mr.TTL("intelliflow:overflow:s1"), time.Duration(0))

	// The store disappears entirely after the idle TTL.
	mr.FastForward(time.Hour)
	window, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, window)
}

func TestPending_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	_, err := store.GetPending(ctx, "s1")
	require.ErrorIs(t, err, session.ErrNoPending)

	action := &core.PendingAction{
		ID:        "a1",
		SessionID: "s1",
		Content:   "generated draft",
		Question:  "where to?",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SetPending(ctx, "s1", action, time.Minute))

	got, err := store.GetPending(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, action.ID, got.ID)
	require.Equal(t, action.Content, got.Content)

	// Expiry is native key expiry: past the TTL the record is absent.
	mr.FastForward(2 * time.Minute)
	_, err = store.GetPending(ctx, "s1")
	require.ErrorIs(t, err, session.ErrNoPending)
}

func TestClear_RemovesAllKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	for _, content := range []string{"A", "B", "C"} {
		_, _, err := store.AppendAndTrim(ctx, "s1", msg(content), 2)
		require.NoError(t, err)
	}
	require.NoError(t, store.SetPending(ctx, "s1", &core.PendingAction{ID: "a1"}, time.Minute))

	require.NoError(t, store.Clear(ctx, "s1"))

	window, err := store.Read(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, window)
	span, err := store.PeekOverflow(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, span)
	_, err = store.GetPending(ctx, "s1")
	require.ErrorIs(t, err, session.ErrNoPending)
}
