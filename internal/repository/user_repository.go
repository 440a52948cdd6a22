package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shailendra378/tradingqueen/internal/model"
)

var (
	// ErrUserNotFound is returned when no user has the requested email.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by CreateIfAbsent when the email is taken.
	ErrUserExists = errors.New("user already exists")
)

// UserRepository is the credential store: users keyed by email address.
// Records are never deleted.
type UserRepository interface {
	// CreateIfAbsent inserts user unless its email is already present, in
	// which case it returns ErrUserExists and leaves the stored record as is.
	CreateIfAbsent(ctx context.Context, user *model.User) error
	// FindByEmail returns a copy of the stored record or ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Update replaces the stored record with the same email.
	Update(ctx context.Context, user *model.User) error
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository. The connection must be
// opened with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) CreateIfAbsent(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(user).Select("*").Omit("id", "email", "created_at").Updates(user)
	if res.Error != nil {
		return fmt.Errorf("update user %s: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
