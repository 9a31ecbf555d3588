// Package redis implements session.Store on Redis. The append-and-trim
// compound is a Lua script, so the window cap and the overflow capture are
// atomic on the server even under concurrent writers to the same session.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/session"
)

const (
	windowPrefix   = "intelliflow:session:"
	overflowPrefix = "intelliflow:overflow:"
	pendingPrefix  = "intelliflow:pending:"
)

// appendAndTrim pushes the new entry, trims the window to the cap, moves
// every trimmed entry onto the overflow buffer and refreshes both TTLs.
// KEYS[1] window list, KEYS[2] overflow list.
// ARGV[1] entry JSON, ARGV[2] cap, ARGV[3] TTL seconds.
// Returns {evicted entries, overflow length}.
var appendAndTrim = redis.NewScript(`
redis.call('RPUSH', KEYS[1], ARGV[1])
local len = redis.call('LLEN', KEYS[1])
local max = tonumber(ARGV[2])
local evicted = {}
if len > max then
  evicted = redis.call('LRANGE', KEYS[1], 0, len - max - 1)
  redis.call('LTRIM', KEYS[1], len - max, -1)
  for i = 1, #evicted do
    redis.call('RPUSH', KEYS[2], evicted[i])
  end
end
redis.call('EXPIRE', KEYS[1], ARGV[3])
if redis.call('EXISTS', KEYS[2]) == 1 then
  redis.call('EXPIRE', KEYS[2], ARGV[3])
end
return {evicted, redis.call('LLEN', KEYS[2])}
`)

// Store is the Redis-backed session store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the given Redis URL and verifies the connection.
func New(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, ttl: ttl}, nil
}

// NewFromClient wraps an existing client, mainly for tests with miniredis.
func NewFromClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) AppendAndTrim(ctx context.Context, sessionID string, msg core.Message, max int) ([]core.Message, int, error) {
	entry, err := json.Marshal(msg)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal message: %w", err)
	}

	res, err := appendAndTrim.Run(ctx, s.client,
		[]string{windowPrefix + sessionID, overflowPrefix + sessionID},
		string(entry), max, int(s.ttl.Seconds()),
	).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("append and trim: %w", err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, 0, fmt.Errorf("append and trim: unexpected reply %T", res)
	}

	rawEvicted, _ := reply[0].([]interface{})
	evicted := make([]core.Message, 0, len(rawEvicted))
	for _, raw := range rawEvicted {
		str, ok := raw.(string)
		if !ok {
			return nil, 0, fmt.Errorf("append and trim: non-string evicted entry %T", raw)
		}
		var m core.Message
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			return nil, 0, fmt.Errorf("unmarshal evicted message: %w", err)
		}
		evicted = append(evicted, m)
	}

	overflow, ok := reply[1].(int64)
	if !ok {
		return nil, 0, fmt.Errorf("append and trim: unexpected overflow length %T", reply[1])
	}
	return evicted, int(overflow), nil
}

func (s *Store) Read(ctx context.Context, sessionID string) ([]core.Message, error) {
	return s.readList(ctx, windowPrefix+sessionID)
}

func (s *Store) PeekOverflow(ctx context.Context, sessionID string) ([]core.Message, error) {
	return s.readList(ctx, overflowPrefix+sessionID)
}

func (s *Store) readList(ctx context.Context, key string) ([]core.Message, error) {
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	messages := make([]core.Message, 0, len(items))
	for _, item := range items {
		var m core.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (s *Store) ConsumeOverflow(ctx context.Context, sessionID string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := s.client.LTrim(ctx, overflowPrefix+sessionID, int64(n), -1).Err(); err != nil {
		return fmt.Errorf("consume overflow: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	keys := []string{
		windowPrefix + sessionID,
		overflowPrefix + sessionID,
		pendingPrefix + sessionID,
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) GetPending(ctx context.Context, sessionID string) (*core.PendingAction, error) {
	// Expiry is native: the record was stored with a TTL, so an expired
	// action is simply a missing key.
	raw, err := s.client.Get(ctx, pendingPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}
	var action core.PendingAction
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return nil, fmt.Errorf("unmarshal pending action: %w", err)
	}
	return &action, nil
}

func (s *Store) SetPending(ctx context.Context, sessionID string, action *core.PendingAction, ttl time.Duration) error {
	raw, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal pending action: %w", err)
	}
	if err := s.client.Set(ctx, pendingPrefix+sessionID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set pending: %w", err)
	}
	return nil
}

func (s *Store) ClearPending(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, pendingPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
