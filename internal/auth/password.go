package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// ErrEmptyPassword is returned when asked to hash an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// maxPasswordBytes is the longest input bcrypt accepts. Longer passwords are
// compared on their first maxPasswordBytes bytes.
const maxPasswordBytes = 72

func passwordBytes(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

// PasswordHasher hashes and verifies passwords with bcrypt. At most
// maxConcurrent hashes run at once so a burst of logins cannot starve the
// rest of the server of CPU.
type PasswordHasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewPasswordHasher creates a hasher with the given bcrypt cost. Costs
// outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost, maxConcurrent int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &PasswordHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Hash returns the bcrypt hash of plaintext. Only the first 72 bytes take
// part in the hash.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for hasher: %w", err)
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword(passwordBytes(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. Any mismatch, malformed
// hash or cancelled context yields false.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), passwordBytes(plaintext)) == nil
}

// Cost returns the bcrypt work factor in use.
func (h *PasswordHasher) Cost() int {
	return h.cost
}
