package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shailendra378/tradingqueen/internal/auth"
	"github.com/shailendra378/tradingqueen/internal/cache"
	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
	"github.com/shailendra378/tradingqueen/internal/logging"
	"github.com/shailendra378/tradingqueen/internal/model"
	"github.com/shailendra378/tradingqueen/internal/repository"
	"github.com/shailendra378/tradingqueen/internal/validation"
)

// Caller-facing messages.
const (
	MsgInvalidCredentials = "invalid email or password"
	MsgUserExists         = "user already exists with this email"
	MsgUserNotFound       = "user not found"
	MsgTokenRequired      = "access token required"
	MsgInvalidToken       = "invalid or expired token"
)

var signupMessages = validation.Messages{
	"required": "all fields are required",
	"min":      "password must be at least 6 characters long",
}

var loginMessages = validation.Messages{
	"required": "email and password are required",
}

type signupInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,emailaddr"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	User  *model.PublicUser `json:"user"`
	Token string            `json:"token"`
}

// ProfileUpdate lists the profile fields a caller may change. Nil and empty
// values leave the stored value untouched.
type ProfileUpdate struct {
	Name                 *string
	InvestmentExperience *string
	RiskTolerance        *string
}

// AuthService handles signup, login, sessions and the caller's profile.
type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// VerifyToken returns the claims of a valid token. A missing token is
	// unauthorized, an invalid or expired one forbidden.
	VerifyToken(ctx context.Context, token string) (*auth.Claims, error)
	GetProfile(ctx context.Context, claims *auth.Claims) (*model.PublicUser, error)
	UpdateProfile(ctx context.Context, claims *auth.Claims, update ProfileUpdate) (*model.PublicUser, error)
	// Logout records the logout time. The token stays valid until it
	// expires unless a denylist is configured.
	Logout(ctx context.Context, claims *auth.Claims) error
	SeedDemoAccounts(ctx context.Context) (int, error)
}

type authService struct {
	repo      repository.UserRepository
	hasher    *auth.PasswordHasher
	tokens    *auth.JWTService
	cache     *cache.Client
	denylist  auth.TokenStoreInterface
	logger    logging.Logger
	now       func() time.Time
	validator *validation.Validator

	// dummyHash is verified against on unknown emails so those logins cost
	// one bcrypt comparison like any other.
	dummyHash string
}

// Option configures the auth service.
type Option func(*authService)

// WithCache enables the profile cache.
func WithCache(c *cache.Client) Option {
	return func(s *authService) { s.cache = c }
}

// WithDenylist makes Logout revoke the presented token.
func WithDenylist(d auth.TokenStoreInterface) Option {
	return func(s *authService) { s.denylist = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *authService) { s.logger = l }
}

// WithClock sets the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *authService) { s.now = now }
}

// NewAuthService creates a new authentication service.
func NewAuthService(repo repository.UserRepository, hasher *auth.PasswordHasher, tokens *auth.JWTService, opts ...Option) AuthService {
	s := &authService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logging.Discard(),
		now:       time.Now,
		validator: validation.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	hash, err := hasher.Hash(context.Background(), uuid.NewString())
	if err != nil {
		s.logger.Warn(context.Background(), "could not prepare dummy password hash", "error", err)
	}
	s.dummyHash = hash
	return s
}

// normalizeEmail trims surrounding whitespace. Addresses are otherwise
// compared exactly, so case matters.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Signup registers a new user and signs them in.
func (s *authService) Signup(ctx context.Context, name, email, password string) (*AuthResult, error) {
	in := signupInput{Name: strings.TrimSpace(name), Email: normalizeEmail(email), Password: password}
	if err := s.validator.ValidateWith(&in, signupMessages); err != nil {
		return nil, err
	}

	// Fast path; CreateIfAbsent below is what actually guarantees uniqueness.
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.New(apperrors.ErrConflict, MsgUserExists)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
		Profile:      model.DefaultProfile(),
	}
	if err := s.repo.CreateIfAbsent(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperrors.New(apperrors.ErrConflict, MsgUserExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, _, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user signed up", "user_id", user.ID.String())
	return &AuthResult{User: user.Public(), Token: token}, nil
}

// Login checks credentials and issues a fresh token. Every credential
// failure carries the same message.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	in := loginInput{Email: normalizeEmail(email), Password: password}
	if err := s.validator.ValidateWith(&in, loginMessages); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		// keep response time independent of whether the email is registered
		s.hasher.Verify(ctx, in.Password, s.dummyHash)
		return nil, apperrors.New(apperrors.ErrUnauthorized, MsgInvalidCredentials)
	}

	if !s.hasher.Verify(ctx, in.Password, user.PasswordHash) {
		s.logger.Info(ctx, "login failed", "user_id", user.ID.String(), "reason", "password")
		return nil, apperrors.New(apperrors.ErrUnauthorized, MsgInvalidCredentials)
	}
	if !user.IsActive {
		s.logger.Info(ctx, "login failed", "user_id", user.ID.String(), "reason", "inactive")
		return nil, apperrors.New(apperrors.ErrUnauthorized, MsgInvalidCredentials)
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	token, _, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID.String())
	return &AuthResult{User: user.Public(), Token: token}, nil
}

// VerifyToken validates a bearer token.
func (s *authService) VerifyToken(ctx context.Context, token string) (*auth.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, MsgTokenRequired)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug(ctx, "token rejected", "error", err)
		return nil, apperrors.New(apperrors.ErrForbidden, MsgInvalidToken)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, apperrors.New(apperrors.ErrForbidden, MsgInvalidToken)
		}
	}
	return claims, nil
}

// Logout stamps the logout time and, with a denylist, revokes the token.
// A user missing from the store is not an error.
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	user, err := s.repo.FindByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		now := s.now().UTC()
		user.LastLogoutAt = &now
		if err := s.save(ctx, user); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
	case !errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("find user: %w", err)
	}

	if s.denylist != nil {
		if err := s.denylist.Revoke(ctx, claims.ID, s.tokens.Remaining(claims)); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}

	s.logger.Info(ctx, "user logged out", "user_id", claims.UserID)
	return nil
}

// demoAccounts are created by SeedDemoAccounts.
var demoAccounts = []struct {
	Name, Email, Password string
}{
	{"Demo User", "demo@tradingqueen.com", "demo123"},
	{"Test Investor", "test@tradingqueen.com", "test123"},
}

// SeedDemoAccounts creates the demo users that are not registered yet and
// returns how many were created.
func (s *authService) SeedDemoAccounts(ctx context.Context) (int, error) {
	created := 0
	for _, demo := range demoAccounts {
		hash, err := s.hasher.Hash(ctx, demo.Password)
		if err != nil {
			return created, fmt.Errorf("hash demo password: %w", err)
		}
		user := &model.User{
			ID:           uuid.New(),
			Email:        demo.Email,
			Name:         demo.Name,
			PasswordHash: hash,
			IsActive:     true,
			CreatedAt:    s.now().UTC(),
			Profile:      model.DemoProfile(),
		}
		if err := s.repo.CreateIfAbsent(ctx, user); err != nil {
			if errors.Is(err, repository.ErrUserExists) {
				continue
			}
			return created, fmt.Errorf("create demo user %s: %w", demo.Email, err)
		}
		created++
	}
	if created > 0 {
		s.logger.Info(ctx, "demo accounts created", "count", created)
	}
	return created, nil
}

func (s *authService) issue(user *model.User) (string, *auth.Claims, error) {
	token, claims, err := s.tokens.Issue(auth.Identity{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, claims, nil
}

// save persists user and drops its cached profile.
func (s *authService) save(ctx context.Context, user *model.User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("update user: %w", err)
	}
	s.invalidateProfile(ctx, user.Email)
	return nil
}
