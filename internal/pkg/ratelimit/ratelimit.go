// Package ratelimit throttles the authenticated API per caller, sharing the
// counters between instances through Redis.
package ratelimit

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/CogniFox/internal/pkg/config"
	"github.com/ManuelReschke/CogniFox/internal/pkg/usercontext"
)

// NewRedisStorage creates the limiter storage on its own Redis database so
// limiter keys never mix with the status cache (DB 0).
func NewRedisStorage(cfg config.CacheConfig) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Warnf("[RateLimit] invalid cache port %q, using 6379", cfg.Port)
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: cfg.LimiterDB,
		Reset:    false,
	})
}

// New returns a limiter allowing max requests per window. A nil storage keeps
// counters in process memory.
func New(max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		Storage:      storage,
		KeyGenerator: Key,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Rate limit exceeded",
			})
		},
	})
}

// Key identifies the caller: the authenticated uid when present, otherwise
// the client address.
func Key(c *fiber.Ctx) string {
	if usercontext.IsLoggedIn(c) {
		return "uid:" + usercontext.GetUserID(c)
	}
	return "ip:" + ClientIP(c)
}

// ClientIP returns the client address as resolved by fiber. Forwarding
// headers count only when the app sets ProxyHeader and the request comes from
// one of its TrustedProxies.
func ClientIP(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.IP(), "::ffff:")
}
