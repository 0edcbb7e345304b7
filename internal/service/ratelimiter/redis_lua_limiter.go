// Package ratelimiter admits work per caller with a Redis-backed token
// bucket evaluated atomically in Lua.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether key may spend cost tokens now.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// BucketConfig sizes one token bucket.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// Enabled reports whether the bucket limits anything.
func (b BucketConfig) Enabled() bool { return b.Capacity > 0 && b.RefillRate > 0 }

// NewBucketConfigFromPerMinute allows perMinute requests per minute with a
// burst of perMinute.
func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// RedisLuaLimiter applies Default to every key unless an override is set
// with SetBucketConfig. Redis failures fail open.
type RedisLuaLimiter struct {
	redis   *redis.Client
	script  *redis.Script
	prefix  string
	Default BucketConfig
	Now     func() time.Time

	mu        sync.RWMutex
	overrides map[string]BucketConfig
}

// NewRedisLuaLimiter returns nil when rdb is nil; a nil limiter admits
// everything.
func NewRedisLuaLimiter(rdb *redis.Client, prefix string, def BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	if prefix == "" {
		prefix = "rate:"
	}
	return &RedisLuaLimiter{
		redis:     rdb,
		script:    redis.NewScript(luaTokenBucketScript),
		prefix:    prefix,
		Default:   def,
		Now:       time.Now,
		overrides: map[string]BucketConfig{},
	}
}

// Floats are returned as strings because Redis truncates Lua numbers to
// integers in replies.
const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] then
  tokens = tonumber(data[1])
end
if data[2] then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_after = (cost - tokens) / refill_rate
end

redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(now))
redis.call("PEXPIRE", key, ttl_ms)

return { allowed, tostring(tokens), tostring(retry_after) }
`

// Allow spends cost tokens from key's bucket.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	cfg := l.bucketFor(key)
	if !cfg.Enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	nowSec := float64(l.Now().UnixNano()) / 1e9
	full := float64(cfg.Capacity) / cfg.RefillRate
	ttl := int64(math.Ceil(full*2*1000)) + 1000

	res, err := l.script.Run(ctx, l.redis, []string{l.prefix + key}, cfg.Capacity, cfg.RefillRate, nowSec, cost, ttl).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, fmt.Errorf("op=ratelimiter.Allow: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}
	allowed := toInt64(vals[0]) == 1
	retryAfterSec := toFloat64(vals[2])
	if math.IsNaN(retryAfterSec) || retryAfterSec < 0 {
		retryAfterSec = 0
	}
	return allowed, time.Duration(retryAfterSec * float64(time.Second)), nil
}

// SetBucketConfig overrides the bucket for one key. Safe for concurrent use.
func (l *RedisLuaLimiter) SetBucketConfig(key string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.overrides == nil {
		l.overrides = map[string]BucketConfig{}
	}
	l.overrides[key] = cfg
}

func (l *RedisLuaLimiter) bucketFor(key string) BucketConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cfg, ok := l.overrides[key]; ok {
		return cfg
	}
	return l.Default
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return math.NaN()
	}
}
