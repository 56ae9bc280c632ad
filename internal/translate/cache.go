package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"reportcard/internal/reportcard"
	u "reportcard/internal/utils"
)

const defaultCacheTTL = time.Minute

// Cached stores successful translations in Redis. Redis errors are logged
// and never fail a translation.
type Cached struct {
	Next  reportcard.Translator
	Redis *redis.Client
	TTL   time.Duration
}

// NewCached wraps next with a Redis cache. A nil client disables caching.
func NewCached(next reportcard.Translator, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{Next: next, Redis: rdb, TTL: ttl}
}

// Translate implements reportcard.Translator.
func (c *Cached) Translate(ctx context.Context, text, from, to string) (string, error) {
	if c.Redis == nil {
		return c.Next.Translate(ctx, text, from, to)
	}

	key := cacheKey(text, from, to)
	if cached, ok := c.getCached(ctx, key); ok {
		return cached, nil
	}

	out, err := c.Next.Translate(ctx, text, from, to)
	if err != nil {
		return "", err
	}
	c.setCached(ctx, key, out)
	return out, nil
}

func cacheKey(text, from, to string) string {
	sum := sha256.Sum256([]byte(text))
	return "translate:" + from + ":" + to + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) getCached(ctx context.Context, key string) (string, bool) {
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	val, err := c.Redis.Get(ctxRedis, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return "", false
	}
	u.Debug("Translation cache hit", "key", key)
	return val, true
}

func (c *Cached) setCached(ctx context.Context, key, val string) {
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := c.Redis.Set(ctxRedis, key, val, ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
