package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore mirrors conversation turns into Redis lists so a session can be
// rehydrated after a restart. The in-process Buffer stays authoritative
// within a running session; the mirror is write-through.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a new conversation mirror.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func convKey(sessionID string) string {
	return "conv:" + sessionID
}

// Append adds a turn to the session's list and trims it to maxTurns.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turn Turn, maxTurns, ttlSec int) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	key := convKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-maxTurns), -1)
	pipe.Expire(ctx, key, time.Duration(ttlSec)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Recent returns the last `limit` turns for the session in chronological order.
func (s *RedisStore) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	key := convKey(sessionID)

	// LRANGE key -limit -1 returns the last `limit` elements
	vals, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear deletes the mirrored history for the session.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, convKey(sessionID)).Err()
}
