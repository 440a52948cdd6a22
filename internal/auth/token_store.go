package auth

import (
	"context"
	"time"

	"github.com/shailendra378/tradingqueen/internal/cache"
)

const denylistKeyPrefix = "denylist:token:"

// TokenStoreInterface defines the token revocation operations.
type TokenStoreInterface interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenStore keeps revoked token ids in Redis until the token would have
// expired anyway.
type TokenStore struct {
	cache *cache.Client
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// Revoke denylists tokenID for ttl. Non-positive ttl means the token has
// already expired and nothing is stored. A failed write is returned so the
// caller does not report a revocation that never happened.
func (s *TokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return s.cache.SetStrict(ctx, denylistKeyPrefix+tokenID, []byte("1"), ttl)
}

// IsRevoked checks the denylist. Lookup failures are returned to the caller,
// which decides whether to fail open or closed.
func (s *TokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	return s.cache.Exists(ctx, denylistKeyPrefix+tokenID)
}
