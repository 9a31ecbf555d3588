// Package session owns per-session conversational state: the bounded
// recent-message window, the overflow buffer of evicted-but-unsummarized
// messages, and the single pending-action record.
//
// All mutation goes through compound operations that are atomic in the
// backing store. Callers never read-modify-write session state, which is
// what keeps the window cap and the overflow accounting correct under
// concurrent requests for the same session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/RuokeZhang/IntelliFlow/core"
)

// ErrNoPending is returned by GetPending when the session has no live
// pending action. An expired record counts as absent.
var ErrNoPending = errors.New("session: no pending action")

// Store is the keyed session-state backend.
// Implementations: redis.Store (production), memory.Store (dev/test).
type Store interface {
	// AppendAndTrim appends msg to the session window and trims the window
	// to at most max entries, as one atomic operation. Evicted entries are
	// moved to the session's overflow buffer inside the same operation and
	// returned. The second return value is the overflow buffer length
	// after the call, i.e. the current unsummarized span size.
	//
	// Post-condition: the window holds at most max entries the moment this
	// returns, for every observer.
	AppendAndTrim(ctx context.Context, sessionID string, msg core.Message, max int) (evicted []core.Message, overflow int, err error)

	// Read returns the live window, oldest first.
	Read(ctx context.Context, sessionID string) ([]core.Message, error)

	// PeekOverflow returns the overflow buffer, oldest first, without
	// consuming it.
	PeekOverflow(ctx context.Context, sessionID string) ([]core.Message, error)

	// ConsumeOverflow removes the oldest n entries from the overflow
	// buffer, called after they have been durably summarized.
	ConsumeOverflow(ctx context.Context, sessionID string, n int) error

	// Clear drops all state for a session.
	Clear(ctx context.Context, sessionID string) error

	// GetPending returns the live pending action, or ErrNoPending.
	GetPending(ctx context.Context, sessionID string) (*core.PendingAction, error)

	// SetPending stores the pending action with the given TTL, replacing
	// any existing record for the session.
	SetPending(ctx context.Context, sessionID string, action *core.PendingAction, ttl time.Duration) error

	// ClearPending removes the pending action. Clearing an absent record
	// is not an error.
	ClearPending(ctx context.Context, sessionID string) error
}
