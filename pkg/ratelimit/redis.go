package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionCounterScript atomically increments a per-session, per-kind
// counter and reports whether the increment would exceed the supplied
// ceiling, so multiple process instances sharing one Redis can enforce
// the same per-session caps the in-memory Limiter enforces for a
// single process. Grounded on the teacher's redisTokenBucketScript —
// same Lua-script-for-atomicity shape, simplified from a token bucket
// to a flat counter since session limits don't refill mid-session.
//
// KEYS[1] = counter key
// ARGV[1] = ceiling
// ARGV[2] = ttl seconds (session counters expire so a crashed session
//           doesn't leak a permanent Redis key)
var sessionCounterScript = redis.NewScript(`
local key = KEYS[1]
local ceiling = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current >= ceiling then
    return {0, current}
end

local updated = redis.call("INCR", key)
redis.call("EXPIRE", key, ttl)
return {1, updated}
`)

// RedisLimiter mirrors Limiter's per-session counters but backs them
// with Redis so horizontally-scaled deployments share one ceiling
// instead of each process enforcing its own.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
	ttl    time.Duration
}

// NewRedisLimiter constructs a Redis-backed limiter against an
// already-configured client.
func NewRedisLimiter(client *redis.Client, limits Limits) *RedisLimiter {
	return &RedisLimiter{client: client, limits: limits, ttl: 6 * time.Hour}
}

func (l *RedisLimiter) checkAndIncrement(ctx context.Context, key string, ceiling int) (bool, error) {
	res, err := sessionCounterScript.Run(ctx, l.client, []string{key}, ceiling, int(l.ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("redis limiter script: %w", err)
	}
	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("unexpected redis limiter response shape")
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}

// CheckAndIncrementSearch atomically checks and increments the search
// counter for a session in one round trip, closing the check-then-act
// race the in-memory Limiter's two separate calls would have across
// processes.
func (l *RedisLimiter) CheckAndIncrementSearch(ctx context.Context, sessionID string) (bool, error) {
	return l.checkAndIncrement(ctx, fmt.Sprintf("ratelimit:search:%s", sessionID), l.limits.MaxSearchPerSession)
}

// CheckAndIncrementLLM is the LLM-call equivalent of CheckAndIncrementSearch.
func (l *RedisLimiter) CheckAndIncrementLLM(ctx context.Context, sessionID string) (bool, error) {
	return l.checkAndIncrement(ctx, fmt.Sprintf("ratelimit:llm:%s", sessionID), l.limits.MaxLLMPerSession)
}

// EndSession clears a session's counters immediately instead of
// waiting out the TTL, so a quick session doesn't hold a slot that
// looks "in use" to CanStartSession-style aggregate checks.
func (l *RedisLimiter) EndSession(ctx context.Context, sessionID string) error {
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf("ratelimit:search:%s", sessionID))
	pipe.Del(ctx, fmt.Sprintf("ratelimit:llm:%s", sessionID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear session counters: %w", err)
	}
	return nil
}
