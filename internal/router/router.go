package router

import (
	"errors"
	"fmt"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/shailendra378/tradingqueen/internal/config"
	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
	"github.com/shailendra378/tradingqueen/internal/handler"
	"github.com/shailendra378/tradingqueen/internal/logging"
	"github.com/shailendra378/tradingqueen/internal/ratelimit"
	"github.com/shailendra378/tradingqueen/internal/service"
	"github.com/shailendra378/tradingqueen/internal/validation"
)

// Rate-limit messages.
const (
	msgAuthRateLimited = "too many authentication attempts, please try again later"
	msgAPIRateLimited  = "too many requests from this address, please try again later"
)

// Limiters groups the rate limiters applied to the API.
type Limiters struct {
	// Auth guards signup and login.
	Auth ratelimit.Limiter
	// API guards every /api route.
	API ratelimit.Limiter
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger logging.Logger,
	authService service.AuthService,
	authHandler *handler.AuthHandler,
	healthHandler *handler.HealthHandler,
	limiters Limiters,
) {
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Validator = validation.New()
	if cfg.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Gzip())

	if !cfg.IsProduction() {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	api := e.Group("/api")
	if limiters.API != nil {
		api.Use(ratelimit.Middleware(limiters.API, logger, "api", msgAPIRateLimited))
	}

	api.GET("/health", healthHandler.Check)

	authGroup := api.Group("/auth")

	// Public routes
	var authLimit []echo.MiddlewareFunc
	if limiters.Auth != nil {
		authLimit = append(authLimit, ratelimit.Middleware(limiters.Auth, logger, "auth", msgAuthRateLimited))
	}
	authGroup.POST("/signup", authHandler.Signup, authLimit...)
	authGroup.POST("/login", authHandler.Login, authLimit...)

	// Secured routes (require a bearer token)
	bearer := BearerAuth(authService)
	authGroup.GET("/profile", authHandler.GetProfile, bearer)
	authGroup.PUT("/profile", authHandler.UpdateProfile, bearer)
	authGroup.POST("/logout", authHandler.Logout, bearer)
	authGroup.GET("/verify", authHandler.Verify, bearer)
}

// BearerAuth verifies the Authorization header through authService and
// stores the claims under handler.ClaimsContextKey. A missing token answers
// 401, an invalid or expired one 403.
func BearerAuth(authService service.AuthService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ClaimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return authService.VerifyToken(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var parseErr *echojwt.TokenParsingError
			if errors.As(err, &parseErr) {
				return parseErr.Err
			}
			return apperrors.New(apperrors.ErrUnauthorized, service.MsgTokenRequired)
		},
	})
}

// ErrorHandler renders every error as an errors.ErrorResponse.
func ErrorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		httpErr := toHTTPError(err)
		if httpErr.StatusCode >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err,
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(httpErr.StatusCode)
		} else {
			err = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
		}
		if err != nil {
			logger.Warn(c.Request().Context(), "write error response", "error", err)
		}
	}
}

func toHTTPError(err error) *apperrors.HTTPError {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return apperrors.MapErrorToHTTP(err)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if he.Code >= http.StatusInternalServerError {
			msg = "internal server error"
		}
		return apperrors.NewHTTPError(he.Code, msg, apperrors.CodeForStatus(he.Code))
	}

	return apperrors.MapErrorToHTTP(err)
}

func requestLogger(logger logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				args = append(args, "error", v.Error.Error())
			}
			logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	})
}
