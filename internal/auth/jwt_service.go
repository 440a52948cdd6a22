package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is how long a session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken is returned when a token's signature, encoding or
	// expiry does not check out.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")
)

const minSecretLength = 32

// Claims represents JWT claims. ID (jti) is unique per issued token.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity is the subset of a user that is embedded in a token.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// JWTOption configures a JWTService.
type JWTOption func(*JWTService)

// WithClock replaces time.Now as the source of issue and validation times.
func WithClock(now func() time.Time) JWTOption {
	return func(s *JWTService) {
		s.now = now
	}
}

// NewJWTService creates a JWT service signing with secret. Tokens live for
// ttl, or DefaultTokenTTL when ttl is not positive.
func NewJWTService(secret string, ttl time.Duration, opts ...JWTOption) (*JWTService, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	s := &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// TTL returns the lifetime given to issued tokens.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new token for id valid for the configured TTL.
func (s *JWTService) Issue(id Identity) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID: id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Verify validates a token and returns its claims. Every failure wraps
// ErrInvalidToken.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Remaining returns how long claims stay valid from now.
func (s *JWTService) Remaining(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	if d := claims.ExpiresAt.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}
