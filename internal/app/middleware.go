package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	u "reportcard/internal/utils"
)

const apiKeyLocal = "api_key"

var (
	// one limiter per distinct per-key quota
	tokenLimiterCache struct {
		sync.RWMutex
		handlers map[int]fiber.Handler
	}
	rateLimitStore fiber.Storage
)

func apiKeyOf(c *fiber.Ctx) string {
	key, _ := c.Locals(apiKeyLocal).(string)
	return key
}

// clientFingerprint identifies anonymous form submissions.
func clientFingerprint(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": msg,
		},
	})
}

// getTokenLimiter returns the limiter for a per-key quota, creating it on
// first use.
func getTokenLimiter(limit int) fiber.Handler {
	tokenLimiterCache.RLock()
	h, ok := tokenLimiterCache.handlers[limit]
	tokenLimiterCache.RUnlock()
	if ok {
		return h
	}

	tokenLimiterCache.Lock()
	defer tokenLimiterCache.Unlock()
	if h, ok := tokenLimiterCache.handlers[limit]; ok {
		return h
	}

	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        u.GetConfig().RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rateLimitStore,
		KeyGenerator:      apiKeyOf,
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "token", apiKeyOf(c), "path", c.Path())
			return jsonError(c, fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
	if tokenLimiterCache.handlers == nil {
		tokenLimiterCache.handlers = make(map[int]fiber.Handler)
	}
	tokenLimiterCache.handlers[limit] = h
	return h
}

// rateLimitMiddleware applies the quota stored with the caller's API key.
// Keys with a zero quota are unlimited.
func rateLimitMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := apiKeyOf(c)
		if token == "" {
			return c.Next()
		}
		limit := u.GetRateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		return getTokenLimiter(limit)(c)
	}
}

// userRateLimitMiddleware limits anonymous clients by IP and user agent.
// Requests carrying an API key are left to rateLimitMiddleware.
func userRateLimitMiddleware(cfg u.Config) fiber.Handler {
	if cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rateLimitStore,
		KeyGenerator:      clientFingerprint,
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "user", clientFingerprint(c), "path", c.Path())
			return jsonError(c, fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
	return func(c *fiber.Ctx) error {
		if apiKeyOf(c) != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

// newLimiterStore prefers Redis and falls back to process memory when no
// host is configured or the Redis storage cannot be created.
func newLimiterStore(cfg u.Config) (store fiber.Storage) {
	if cfg.Cache.RedisHost == "" {
		return memoryStorage.New()
	}
	defer func() {
		if r := recover(); r != nil {
			u.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
			store = memoryStorage.New()
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	u.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}

// apiKeyAuth checks the optional X-API-Key header against the loaded keys.
// Requests without the header pass through as anonymous.
func apiKeyAuth() fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !u.TokensReady() {
				return false, u.ErrTokenStoreNotReady
			}
			if !u.ValidateToken(key) {
				return false, u.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may pass a nil error
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			status := fiber.StatusUnauthorized
			if errors.Is(err, u.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return jsonError(c, status, err.Error())
		},
	})
}

// RegisterMiddleware attaches global middleware to the app
func RegisterMiddleware(app *fiber.App, cfg u.Config) {
	rateLimitStore = newLimiterStore(cfg)
	tokenLimiterCache.Lock()
	tokenLimiterCache.handlers = nil
	tokenLimiterCache.Unlock()

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New())

	app.Use(apiKeyAuth())

	app.Use(rateLimitMiddleware())

	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		app.Use(userRateLimitMiddleware(cfg))
	}

	app.Use(metricsMiddleware())

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		u.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})
}
