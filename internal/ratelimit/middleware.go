package ratelimit

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
	"github.com/shailendra378/tradingqueen/internal/logging"
)

const storeTimeout = 500 * time.Millisecond

// EchoStore adapts a Limiter to echo's RateLimiterStore. Backend failures
// let the request through.
type EchoStore struct {
	limiter Limiter
	logger  logging.Logger
	name    string
}

var _ middleware.RateLimiterStore = (*EchoStore)(nil)

// NewEchoStore wraps l. name identifies the limiter in logs.
func NewEchoStore(l Limiter, logger logging.Logger, name string) *EchoStore {
	return &EchoStore{limiter: l, logger: logger, name: name}
}

// Allow implements middleware.RateLimiterStore.
func (s *EchoStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	ok, err := s.limiter.Allow(ctx, identifier)
	if err != nil {
		s.logger.Warn(ctx, "rate limiter unavailable, allowing request",
			"limiter", s.name, "error", err)
		return true, nil
	}
	return ok, nil
}

// Middleware rejects requests from a client address once l denies it,
// answering with a rate-limit error carrying message.
func Middleware(l Limiter, logger logging.Logger, name, message string) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: NewEchoStore(l, logger, name),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.Info(c.Request().Context(), "rate limit exceeded",
				"limiter", name, "client", identifier, "path", c.Path())
			return apperrors.New(apperrors.ErrRateLimited, message)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.New(apperrors.ErrRateLimited, message)
		},
	})
}
