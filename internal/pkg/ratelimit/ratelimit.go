package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tourhive/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tourhive:ratelimit:"

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
if allowed then
  tokens = tokens - requested
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, tokens}
`

// Limiter 是基于 Redis 令牌桶的限流器，每个客户端一个桶。
type Limiter struct {
	rdb    *redis.Client
	rate   float64
	burst  float64
	script *redis.Script
}

// NewRedisLimiter 创建限流器；rate 为每秒补充的令牌数，burst 为桶容量。
func NewRedisLimiter(rdb *redis.Client, rate float64, burst float64) *Limiter {
	return &Limiter{
		rdb:    rdb,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 判断 clientKey 当前是否放行（非阻塞，HTTP 请求路径用）。
//
// rate/burst 配置为 0 时视为未启用，一律放行。
func (r *Limiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return true, nil
	}

	start := time.Now()
	now := start.UnixMilli()
	key := keyPrefix + clientKey
	res, err := r.script.Run(ctx, r.rdb, []string{key}, r.rate, r.burst, now, 1).Result()
	metrics.RateLimitWaitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 1 {
		return false, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	if !allowed {
		metrics.RateLimitRejectedTotal.Inc()
	}
	return allowed, nil
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
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
