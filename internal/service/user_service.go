package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shailendra378/tradingqueen/internal/auth"
	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
	"github.com/shailendra378/tradingqueen/internal/model"
	"github.com/shailendra378/tradingqueen/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

func profileCacheKey(email string) string {
	return "user:profile:" + email
}

// GetProfile returns the caller's public record, served from the cache when
// possible.
func (s *authService) GetProfile(ctx context.Context, claims *auth.Claims) (*model.PublicUser, error) {
	key := profileCacheKey(claims.Email)
	if data, _ := s.cache.Get(ctx, key); data != nil {
		var cached model.PublicUser
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.findCaller(ctx, claims)
	if err != nil {
		return nil, err
	}

	public := user.Public()
	if payload, err := json.Marshal(public); err == nil {
		_ = s.cache.Set(ctx, key, payload, profileCacheTTL)
	}
	return public, nil
}

// UpdateProfile applies the non-empty fields of update and stamps updatedAt.
func (s *authService) UpdateProfile(ctx context.Context, claims *auth.Claims, update ProfileUpdate) (*model.PublicUser, error) {
	user, err := s.findCaller(ctx, claims)
	if err != nil {
		return nil, err
	}

	if v, ok := present(update.Name); ok {
		user.Name = v
	}
	if v, ok := present(update.InvestmentExperience); ok {
		user.Profile.InvestmentExperience = v
	}
	if v, ok := present(update.RiskTolerance); ok {
		user.Profile.RiskTolerance = v
	}
	now := s.now().UTC()
	user.UpdatedAt = &now

	if err := s.save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, MsgUserNotFound)
		}
		return nil, err
	}

	s.logger.Info(ctx, "profile updated", "user_id", user.ID.String())
	return user.Public(), nil
}

func (s *authService) findCaller(ctx context.Context, claims *auth.Claims) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, MsgUserNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *authService) invalidateProfile(ctx context.Context, email string) {
	_ = s.cache.Delete(ctx, profileCacheKey(email))
}

func present(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(*v)
	return trimmed, trimmed != ""
}
