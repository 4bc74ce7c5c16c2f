package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/edutalk/api/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter applies fixed-window limits per user, or per client IP when the
// request is anonymous. Counters live in Redis when a client is given and in
// process memory otherwise.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware. A non-positive max disables it.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	if maxRequests <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	if rl.redis == nil {
		return limiter.New(limiter.Config{
			Max:        maxRequests,
			Expiration: window,
			KeyGenerator: func(c *fiber.Ctx) string {
				return keyPrefix + ":" + requesterKey(c)
			},
			LimitReached: func(c *fiber.Ctx) error {
				return response.RateLimited(c)
			},
		})
	}

	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, requesterKey(c))
		ctx := c.UserContext()

		pipe := rl.redis.TxPipeline()
		incr := pipe.Incr(ctx, key)
		ttlCmd := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			// Fail open: a Redis outage must not take the API down.
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			return c.Next()
		}
		count, ttl := incr.Val(), ttlCmd.Val()

		// A counter without a TTL would never reset; any request repairs it.
		if ttl < 0 {
			if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to set rate limit window")
				return c.Next()
			}
			ttl = window
		}

		if count > int64(maxRequests) {
			c.Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))

		return c.Next()
	}
}

// GenerateLimit limits video submissions per hour
func (rl *RateLimiter) GenerateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("generate", maxPerHour, time.Hour)
}

// UploadLimit limits presenter uploads per hour
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}

// ScriptLimit limits synchronous script generation per minute
func (rl *RateLimiter) ScriptLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("script", maxPerMin, time.Minute)
}

func requesterKey(c *fiber.Ctx) string {
	if userID := GetUserID(c); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.IP()
}
