package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:ledger:"

// CallerRateLimit caps state-changing requests per caller (or client IP for
// anonymous requests) within a one-minute window opened by their first
// request. Reads pass through. Without Redis, or when Redis fails, requests
// are let through.
func CallerRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		who := Caller(c)
		if who == "" {
			who = "ip:" + c.IP()
		}
		key := rateLimitPrefix + who

		ctx := c.UserContext()
		var (
			incr *redis.IntCmd
			ttl  *redis.DurationCmd
		)
		if _, err := cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.TTL(ctx, key)
			return nil
		}); err != nil {
			return c.Next()
		}

		// a counter without expiry opens the window; a failed Expire is retried on the next request
		window := ttl.Val()
		if window < 0 {
			if err := cache.Expire(ctx, key, time.Minute).Err(); err == nil {
				window = time.Minute
			}
		}
		if incr.Val() > int64(maxPerMin) {
			if window > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())+1))
			}
			return fiber.NewError(http.StatusTooManyRequests, "too many ledger requests, try again later")
		}
		return c.Next()
	}
}
