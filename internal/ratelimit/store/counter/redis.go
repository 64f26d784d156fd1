package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter on shared Redis, so every replica enforcing
// a budget sees the same counts. INCR creates the key at 1 and EXPIRE NX
// starts the TTL only on that first increment, anchoring the window to its
// first request.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a counter store over an established Redis client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Incr bumps the counter for key inside a MULTI/EXEC pipeline so the
// increment, the conditional expiry, and the TTL read apply atomically.
func (s *Redis) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// PTTL is negative when the key carries no expiry, which would leave
		// a counter that never resets. Set a full window and carry on.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("repair expiry for %s: %w", key, err)
		}
		remaining = window
	}
	return int(incr.Val()), time.Now().Add(remaining), nil
}
