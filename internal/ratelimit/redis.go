package ratelimit

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/shailendra378/tradingqueen/internal/cache"
)

// NewRedis returns a Window whose counters live in Redis, shared by every
// instance pointing at the same server. Keys are stored as
// "ratelimit:<name>:<key>". It fails when the server cannot be reached.
func NewRedis(client *redis.Client, name string, max int, length time.Duration) (*Window, error) {
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: keyPrefix + name,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis rate limit store: %w", err)
	}
	return newWindow(store, max, length), nil
}

// New returns a Redis-backed Window when c is connected to a server and an
// in-process one otherwise.
func New(c *cache.Client, name string, max int, length time.Duration) (*Window, error) {
	if c.Enabled() {
		return NewRedis(c.Redis(), name, max, length)
	}
	return NewMemory(name, max, length), nil
}
