package limiter

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared limiter backend for multi-instance deployments.
// The counter for each key lives in Redis, incremented atomically, so
// all instances see the same attempt count. The window is the key's
// TTL: set when the first attempt creates the key, never extended.
type Redis struct {
	client      *redis.Client
	maxAttempts int
	windowSize  time.Duration
	prefix      string
}

// NewRedis builds a Redis-backed limiter. The prefix namespaces the
// limiter's keys away from anything else sharing the database.
func NewRedis(client *redis.Client, maxAttempts int, windowSize time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "authrl"
	}
	return &Redis{client: client, maxAttempts: maxAttempts, windowSize: windowSize, prefix: prefix}
}

// Allow implements Limiter. A Redis outage fails open: losing the
// throttle for a while is preferable to locking every client out, and
// per-account lockout still holds on its own.
func (r *Redis) Allow(ctx context.Context, key string) error {
	full := r.prefix + ":" + key

	count, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		log.Printf("limiter: redis incr failed for %s: %v", full, err)
		return nil
	}
	if count == 1 {
		// First attempt opens the window.
		if err := r.client.Expire(ctx, full, r.windowSize).Err(); err != nil {
			log.Printf("limiter: redis expire failed for %s: %v", full, err)
		}
		return nil
	}
	if count <= int64(r.maxAttempts) {
		return nil
	}

	ttl, err := r.client.PTTL(ctx, full).Result()
	if err != nil || ttl < 0 {
		// Counter exists but has no expiry (lost EXPIRE); re-arm it so
		// the key cannot throttle forever.
		_ = r.client.Expire(ctx, full, r.windowSize).Err()
		ttl = r.windowSize
	}
	now := time.Now()
	return &RateLimitError{RemainingMinutes: minutesUntil(now, now.Add(ttl))}
}
