package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values by key. A miss is reported with ok == false and
// a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type Config struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// RedisCache is a Cache backed by a redis server.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	slog.Info("connected to redis cache", "address", cfg.Address, "db", cfg.DB, "ttl", cfg.TTL)
	return &RedisCache{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, c.key(key), value, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixed...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopCache never stores anything. It is used when no redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, []byte) error         { return nil }
func (NoopCache) Delete(context.Context, ...string) error           { return nil }
func (NoopCache) Close() error                                      { return nil }

// New returns a RedisCache when an address is configured and a NoopCache otherwise.
func New(ctx context.Context, cfg Config) (Cache, error) {
	if cfg.Address == "" {
		slog.Info("no cache address configured; caching disabled")
		return NoopCache{}, nil
	}
	return NewRedisCache(ctx, cfg)
}

// GetJSON reads a JSON encoded value. Undecodable entries count as misses.
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false, nil
	}
	return &v, true, nil
}

// SetJSON stores v JSON encoded.
func SetJSON[T any](ctx context.Context, c Cache, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw)
}
