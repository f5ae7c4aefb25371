package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrNotConfigured = errors.New("rate limiter not configured")
	ErrInvalidLimit  = errors.New("rate limiter needs a key, a positive rate and a positive burst")
)

// KEYS[1] bucket hash; ARGV rate (tokens/s), burst, ttl (ms).
// Refill is computed from the Redis server clock so every API instance
// drains the same bucket at the same pace.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + (elapsed / 1000) * rate)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

type TokenBucket struct {
	client redis.Scripter
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.Scripter) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(tokenBucketScript)}
}

// Allow takes one token from the bucket at key.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, ErrNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return nil, ErrInvalidLimit
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, fmt.Errorf("token bucket %s: %w", key, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("token bucket %s: unexpected reply %v", key, res)
	}

	allowed, _ := res[0].(int64)
	// Lua numbers are truncated to integers on the way out, so the token
	// count travels as a string.
	remaining, _ := res[1].(string)
	tokens, err := strconv.ParseFloat(remaining, 64)
	if err != nil {
		return nil, fmt.Errorf("token bucket %s: parse tokens: %w", key, err)
	}

	result := &RateLimitResult{
		Allowed:   allowed == 1,
		Limit:     burst,
		Remaining: int(math.Floor(tokens)),
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration((1 - tokens) / rate * float64(time.Second))
	}
	return result, nil
}

// An idle bucket refills completely in burst/rate seconds; keep it twice
// that long.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	return time.Duration(max(seconds, 1)) * time.Second
}
