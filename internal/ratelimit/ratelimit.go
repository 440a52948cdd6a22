// Package ratelimit counts attempts per client key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
)

const keyPrefix = "ratelimit:"

// Limiter decides whether another attempt for key is allowed in the current
// window. An error means the decision could not be made.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Window allows max attempts per key in each fixed window. The window starts
// at a key's first attempt and its counter resets when it elapses.
type Window struct {
	limiter *limiter.Limiter
}

var _ Limiter = (*Window)(nil)

func newWindow(store limiter.Store, max int, length time.Duration) *Window {
	return &Window{
		limiter: limiter.New(store, limiter.Rate{
			Period: length,
			Limit:  int64(max),
		}),
	}
}

// NewMemory returns an in-process Window. Counters are lost on restart and
// not shared between instances.
func NewMemory(name string, max int, length time.Duration) *Window {
	store := memorystore.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          keyPrefix + name,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
	return newWindow(store, max, length)
}

// Allow implements Limiter.
func (w *Window) Allow(ctx context.Context, key string) (bool, error) {
	lctx, err := w.limiter.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit lookup: %w", err)
	}
	return !lctx.Reached, nil
}
