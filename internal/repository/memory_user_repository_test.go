package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shailendra378/tradingqueen/internal/model"
)

func newUser(email string) *model.User {
	return &model.User{
		Email:        email,
		Name:         "Jane Doe",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		Profile:      model.DefaultProfile(),
	}
}

func TestMemoryUserRepository_CreateAndFind(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u := newUser("jane@x.com")
	require.NoError(t, repo.CreateIfAbsent(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.FindByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryUserRepository_CreateIfAbsentKeepsOriginal(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, newUser("jane@x.com")))

	dup := newUser("jane@x.com")
	dup.PasswordHash = "other"
	assert.ErrorIs(t, repo.CreateIfAbsent(ctx, dup), ErrUserExists)

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u := newUser("jane@x.com")
	require.NoError(t, repo.CreateIfAbsent(ctx, u))
	u.Name = "mutated after create"

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	got.Profile.RiskTolerance = "aggressive"

	again, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", again.Name)
	assert.Equal(t, model.DefaultRiskTolerance, again.Profile.RiskTolerance)
}

func TestMemoryUserRepository_Update(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u := newUser("jane@x.com")
	require.NoError(t, repo.CreateIfAbsent(ctx, u))

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	now := time.Now().UTC()
	got.LastLoginAt = &now
	got.Name = "Jane Q. Doe"
	require.NoError(t, repo.Update(ctx, got))

	stored, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Q. Doe", stored.Name)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, now.Equal(*stored.LastLoginAt))
	assert.Equal(t, u.ID, stored.ID)

	assert.ErrorIs(t, repo.Update(ctx, newUser("ghost@x.com")), ErrUserNotFound)
}

func TestMemoryUserRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	var created, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateIfAbsent(ctx, newUser("race@x.com"))
			switch err {
			case nil:
				created.Add(1)
			case ErrUserExists:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(49), conflicts.Load())
}

func TestMemoryUserRepository_ManyUsers(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, repo.CreateIfAbsent(ctx, newUser(fmt.Sprintf("user%d@x.com", i))))
	}
	for i := 0; i < 100; i++ {
		got, err := repo.FindByEmail(ctx, fmt.Sprintf("user%d@x.com", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("user%d@x.com", i), got.Email)
	}
}
