// Package cache stores rendered gallery pages so repeated browse requests do
// not reach the backend. The Redis implementation is used when
// cache.redis_addr is configured; otherwise a no-op cache is returned.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gallery/internal/config"
	"gallery/internal/logging"
)

// PageCache stores opaque page bodies by key.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every key starting with prefix.
	Invalidate(ctx context.Context, prefix string) error
	Close() error
}

// GalleryPrefix is shared by every gallery page key.
const GalleryPrefix = "gallery:"

// GalleryKey is the cache key of one gallery page.
func GalleryKey(limit int, cursor string) string {
	return fmt.Sprintf("%s%d:%s", GalleryPrefix, limit, cursor)
}

const invalidateScanCount = 100

// New returns a Redis cache when configured and a no-op cache otherwise.
// An unreachable Redis is logged but still returned; failed calls fall
// through to the backend.
func New(cfg *config.Config, logger *slog.Logger) PageCache {
	if cfg == nil || cfg.Cache.RedisAddr == "" {
		return Nop{}
	}
	logger = logging.NewComponentLogger(logger, "cache")
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Cache.RedisAddr,
		Password:     cfg.Cache.RedisPassword,
		DB:           cfg.Cache.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logging.WarnWithContext(logger, "redis unreachable", "cache_unavailable",
			logging.String("addr", cfg.Cache.RedisAddr),
			logging.Error(err),
			logging.String(logging.FieldImpact, "gallery pages are fetched from the backend on every request"),
			logging.String(logging.FieldErrorHint, "check cache.redis_addr or start redis"),
		)
	}
	return NewRedis(client)
}

// Redis is a PageCache backed by a go-redis client.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Get returns the cached value. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value with ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate scans for keys under prefix and deletes them in pages.
func (r *Redis) Invalidate(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", invalidateScanCount).Iterator()
	keys := make([]string, 0, invalidateScanCount)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == invalidateScanCount {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del %s*: %w", prefix, err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del %s*: %w", prefix, err)
		}
	}
	return nil
}

// Close releases the client connections.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context, string) error                 { return nil }
func (Nop) Close() error                                             { return nil }
