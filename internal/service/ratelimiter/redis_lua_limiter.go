// Package ratelimiter provides a Redis-backed token bucket shared across
// worker replicas so aggregate LLM request rates stay inside the provider's
// per-minute window.
package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// BucketConfig describes one token bucket.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// PerMinute builds a bucket that refills to perMinute requests each minute.
func PerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// RedisLuaLimiter is a token-bucket limiter evaluated atomically in Redis.
// A nil limiter or an unconfigured bucket always allows.
type RedisLuaLimiter struct {
	redis  *redis.Client
	bucket BucketConfig
	script *redis.Script
}

// New builds a limiter with one bucket applied to every key. Returns nil
// when rdb is nil so callers can treat a missing Redis as "no limiting".
func New(rdb *redis.Client, bucket BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	return &RedisLuaLimiter{
		redis:  rdb,
		bucket: bucket,
		script: redis.NewScript(luaTokenBucketScript),
	}
}

const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end

if last_refill == nil then
  last_refill = now
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)
last_refill = now

local allowed = 0
local retry_after = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  local shortage = cost - tokens
  if refill_rate > 0 then
    retry_after = shortage / refill_rate
  else
    retry_after = 0
  end
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)

return { allowed, tokens, last_refill, retry_after }
`

// Reserve consumes one token for the key, returning how long the caller
// should wait when the bucket is empty. Fails open on Redis errors so a
// cache outage never blocks the pipeline.
func (l *RedisLuaLimiter) Reserve(ctx context.Context, key string) (time.Duration, error) {
	if l == nil || l.redis == nil {
		return 0, nil
	}
	if l.bucket.Capacity <= 0 || l.bucket.RefillRate <= 0 {
		return 0, nil
	}

	nowSec := float64(time.Now().UnixNano()) / 1e9
	redisKey := "rate:llm:" + key
	res, err := l.script.Run(ctx, l.redis, []string{redisKey},
		l.bucket.Capacity, l.bucket.RefillRate, nowSec, 1).Result()
	if err != nil {
		slog.Error("redis rate limiter script error",
			slog.String("key", key), slog.Any("error", err))
		return 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		slog.Error("redis rate limiter unexpected script result",
			slog.String("key", key), slog.Any("result", res))
		return 0, nil
	}

	if toInt64(vals[0]) == 1 {
		return 0, nil
	}
	retryAfterSec := toFloat64(vals[3])
	return time.Duration(retryAfterSec * float64(time.Second)), nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
