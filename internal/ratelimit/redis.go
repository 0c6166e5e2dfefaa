package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"
)

const redisOpTimeout = 2 * time.Second

// slidingWindowScript prunes, counts and conditionally records in one atomic
// step. ARGV: now ms, window start ms, limit, member, window ms.
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

var _ Limiter = (*RedisSlidingWindow)(nil)

// RedisSlidingWindow keeps each key's window in a Redis sorted set scored by
// request time in milliseconds, one ULID member per admitted request. It
// fails open when Redis is unreachable.
type RedisSlidingWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisSlidingWindow creates a limiter backed by client.
func NewRedisSlidingWindow(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		client: client,
		limit:  limit,
		window: window,
		prefix: "esgqa:ratelimit:",
		now:    time.Now,
		logger: logger,
	}
}

// Allow reports whether key may make another request.
func (l *RedisSlidingWindow) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ok, err := l.allow(ctx, key)
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true
	}
	if !ok {
		deniedTotal.Inc()
	}
	return ok
}

func (l *RedisSlidingWindow) allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	admitted, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		ulid.Make().String(),
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("run window script: %w", err)
	}
	return admitted == 1, nil
}
