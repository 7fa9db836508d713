package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/wedding-planner/internal/config"
)

// tokenBucket refills continuously at refill/interval tokens per
// millisecond, capped at capacity, and takes one token per request.  It
// returns {allowed, whole tokens left, milliseconds until the next token}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3]) / tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if not tokens or not ts then
    tokens = capacity
    ts = now
end
tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
redis.call('EXPIRE', key, ttl)
return { allowed, math.floor(tokens), wait }
`)

// NewTokenBucket rate-limits requests with a Redis-backed token bucket.
// It is a pass-through when disabled or without a Redis client, and fails
// open when Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []interface{}{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
			if err != nil || len(vals) != 3 {
				slog.Warn("rate limit unavailable", "key", key, "err", err)
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				h.Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					slog.Debug("rate limit block", "key", key, "retry_ms", retryMs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":      "rate limit exceeded",
					"retryAfter": secs,
				})
			}
			return next(c)
		}
	}
}

// keyParts lists the request attributes a bucket key may be built from,
// in key order.
var keyParts = []string{"ip", "user", "route"}

// buildRateKey joins the prefix with the attributes named by the key
// strategy, e.g. "user_route".  An unknown strategy keys on all of them.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	values := map[string]string{
		"ip":    c.RealIP(),
		"user":  CallerID(c),
		"route": c.Request().Method + " " + c.Path(),
	}
	if values["ip"] == "" {
		values["ip"] = "unknown"
	}
	if values["user"] == "" {
		values["user"] = "anon"
	}

	wanted := make(map[string]bool, len(keyParts))
	for _, p := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		if _, ok := values[p]; !ok {
			wanted = nil
			break
		}
		wanted[p] = true
	}

	key := []string{cfg.Prefix}
	for _, p := range keyParts {
		if wanted == nil || wanted[p] {
			key = append(key, p, values[p])
		}
	}
	return strings.Join(key, ":")
}
