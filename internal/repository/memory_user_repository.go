package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shailendra378/tradingqueen/internal/model"
)

// memoryUserRepository keeps users in an append-only arena indexed by email.
// All reads and writes copy records so callers never alias stored state.
type memoryUserRepository struct {
	mu      sync.RWMutex
	users   []*model.User
	byEmail map[string]int
}

// NewMemoryUserRepository creates an empty process-local credential store.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{byEmail: make(map[string]int)}
}

func (r *memoryUserRepository) CreateIfAbsent(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return ErrUserExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	r.byEmail[user.Email] = len(r.users)
	r.users = append(r.users, user.Clone())
	return nil
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.users[idx].Clone(), nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byEmail[user.Email]
	if !ok {
		return ErrUserNotFound
	}
	updated := user.Clone()
	updated.ID = r.users[idx].ID
	updated.CreatedAt = r.users[idx].CreatedAt
	r.users[idx] = updated
	return nil
}
