package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is not present in a store
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return fmt.Sprintf("cache miss: %s", e.Key)
}

// IsCacheMiss reports whether err is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// Store holds compiled page sources by key
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, source string) error
	Clear(ctx context.Context) error
	Close() error
}

// DefaultPageCacheSize is the entry count of a PageCache created with size 0
const DefaultPageCacheSize = 256

// PageCache is an in-process LRU store
type PageCache struct {
	entries *lru.Cache[string, string]
}

// NewPageCache creates a memory store holding up to size pages
func NewPageCache(size int) *PageCache {
	if size <= 0 {
		size = DefaultPageCacheSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return &PageCache{entries: entries}
}

// Get retrieves a page from the cache
func (c *PageCache) Get(_ context.Context, key string) (string, error) {
	if src, ok := c.entries.Get(key); ok {
		return src, nil
	}
	return "", ErrCacheMiss{Key: key}
}

// Set stores a page in the cache
func (c *PageCache) Set(_ context.Context, key, source string) error {
	c.entries.Add(key, source)
	return nil
}

// Clear removes all pages
func (c *PageCache) Clear(context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of cached pages
func (c *PageCache) Len() int {
	return c.entries.Len()
}

// Close is a no-op for the memory store
func (c *PageCache) Close() error {
	return nil
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key
	Prefix string
	// TTL expires entries; zero keeps them until evicted
	TTL time.Duration
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "pagecraft:page:",
		TTL:    10 * time.Minute,
	}
}

// RedisStore shares compiled pages between server processes
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", config.Addr, err)
	}

	return NewRedisStoreWithClient(client, config), nil
}

// NewRedisStoreWithClient creates a store over an existing client
func NewRedisStoreWithClient(client *redis.Client, config RedisConfig) *RedisStore {
	prefix := config.Prefix
	if prefix == "" {
		prefix = DefaultRedisConfig().Prefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: config.TTL}
}

// Get retrieves a page from Redis
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss{Key: key}
		}
		return "", err
	}
	return value, nil
}

// Set stores a page in Redis with the configured TTL
func (r *RedisStore) Set(ctx context.Context, key, source string) error {
	return r.client.Set(ctx, r.prefix+key, source, r.ttl).Err()
}

// Clear removes every key under the store's prefix
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if !strings.HasPrefix(iter.Val(), r.prefix) {
			continue
		}
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Client returns the underlying redis client
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
