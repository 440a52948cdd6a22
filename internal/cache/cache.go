package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned by operations that cannot degrade to a miss
// when no Redis server is configured.
var ErrUnavailable = errors.New("cache unavailable")

// Client wraps redis.Client but fails safe by swallowing connectivity errors
// on plain reads and writes. A nil *Client behaves as an always-empty cache.
type Client struct {
	client *redis.Client
}

// New creates a new Redis client. An empty addr yields a disabled client.
func New(addr, password string, db int) *Client {
	if addr == "" {
		return &Client{}
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return &Client{client: redis.NewClient(opts)}
}

// Enabled reports whether a Redis server backs this client.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.Enabled() {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// fail safe: behave like cache miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		// fail safe: ignore redis errors
		return nil
	}
	return nil
}

// SetStrict stores value with TTL and returns redis errors, for writes the
// caller cannot afford to lose.
func (c *Client) SetStrict(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.Enabled() {
		return ErrUnavailable
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return nil
	}
	return nil
}

// Exists reports whether key is present. Unlike Get it returns redis errors
// so security-relevant callers can decide how to degrade.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if !c.Enabled() {
		return false, ErrUnavailable
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Redis returns the underlying client for libraries that talk to Redis
// directly, or nil when disabled.
func (c *Client) Redis() *redis.Client {
	if !c.Enabled() {
		return nil
	}
	return c.client
}

// Ping checks connectivity to the Redis server.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrUnavailable
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
