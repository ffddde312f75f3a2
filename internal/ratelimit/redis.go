package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// redisTimeout bounds every limiter round trip. On timeout or error the call
// is admitted: an unavailable Redis must not take the API down with it.
const redisTimeout = 250 * time.Millisecond

// RedisLimiter is a fixed-window limiter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	script *redis.Script
}

// NewRedisLimiter returns nil when client is nil; a nil limiter admits everything.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		script: redis.NewScript(rateLimitScript),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{l.key(key)}, ttl, limit).Int64()
	if err != nil {
		slog.Warn("rate limiter unavailable", "err", err)
		return true
	}
	return allowed == 1
}

func (l *RedisLimiter) key(k string) string {
	if l.prefix == "" {
		return k
	}
	return l.prefix + ":" + k
}

// RedisGate is a Gate shared by every instance, built on SET NX PX.
type RedisGate struct {
	client *redis.Client
	prefix string
}

func NewRedisGate(client *redis.Client, prefix string) *RedisGate {
	if client == nil {
		return nil
	}
	return &RedisGate{client: client, prefix: prefix}
}

func (g *RedisGate) Acquire(ctx context.Context, key string, ttl time.Duration) bool {
	if g == nil || g.client == nil {
		return true
	}
	if g.prefix != "" {
		key = g.prefix + ":" + key
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		slog.Warn("gate unavailable", "key", key, "err", err)
		return true
	}
	return ok
}
