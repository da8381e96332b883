package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// CacheConfig configures the Redis known-URL cache.
type CacheConfig struct {
	Addr     string `yaml:"addr" toml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" toml:"password" env:"REDIS_PASS"`
	DB       int    `yaml:"db" toml:"db" env:"REDIS_DB"`
	Key      string `yaml:"key" toml:"key"`
}

type setStore interface {
	SMIsMember(ctx context.Context, key string, members ...interface{}) *redis.BoolSliceCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// Cache keeps known article URLs in a Redis set in front of a slower Index.
// Redis failures fall back to the wrapped index.
type Cache struct {
	sets   setStore
	client *redis.Client
	key    string
	index  Index
	logger *slog.Logger
}

// NewCache connects to Redis and wraps index.
func NewCache(ctx context.Context, index Index, cfg CacheConfig) (*Cache, error) {
	if cfg.Key == "" {
		cfg.Key = "newsdesk:urls"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	c := newCache(client, cfg.Key, index)
	c.client = client
	return c, nil
}

func newCache(sets setStore, key string, index Index) *Cache {
	return &Cache{
		sets:   sets,
		key:    key,
		index:  index,
		logger: slog.Default(),
	}
}

// ExistingURLs answers from Redis first and asks the index only for misses.
func (c *Cache) ExistingURLs(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	hits, err := c.sets.SMIsMember(ctx, c.key, toMembers(urls)...).Result()
	if err != nil || len(hits) != len(urls) {
		c.logger.Warn("url cache lookup failed, using index", "error", err)
		return c.index.ExistingURLs(ctx, urls)
	}

	var known, misses []string
	for i, hit := range hits {
		if hit {
			known = append(known, urls[i])
		} else {
			misses = append(misses, urls[i])
		}
	}
	if len(misses) == 0 {
		return known, nil
	}

	found, err := c.index.ExistingURLs(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		// Backfill so the next lookup stays in Redis.
		if err := c.Remember(ctx, found); err != nil {
			c.logger.Warn("url cache backfill failed", "error", err)
		}
	}
	return append(known, found...), nil
}

// Remember adds urls to the cache.
func (c *Cache) Remember(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := c.sets.SAdd(ctx, c.key, toMembers(urls)...).Err(); err != nil {
		return fmt.Errorf("cache urls: %w", err)
	}
	return nil
}

// Forget removes urls from the cache. It is called when their documents
// are deleted, so the next lookup goes back to the index.
func (c *Cache) Forget(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := c.sets.SRem(ctx, c.key, toMembers(urls)...).Err(); err != nil {
		return fmt.Errorf("evict urls: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func toMembers(urls []string) []interface{} {
	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}
	return members
}
