package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shailendra378/tradingqueen/internal/logging"
)

// Health statuses.
const (
	StatusOK       = "OK"
	StatusDegraded = "DEGRADED"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports process uptime and dependency status.
type HealthHandler struct {
	environment string
	started     time.Time
	now         func() time.Time
	checks      map[string]HealthCheck
	logger      logging.Logger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string            `json:"status" example:"OK"`
	Timestamp   time.Time         `json:"timestamp"`
	Uptime      float64           `json:"uptime" example:"42.5"`
	Environment string            `json:"environment" example:"development"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// NewHealthHandler creates a health handler. checks maps a dependency name
// to its ping; nil entries are skipped.
func NewHealthHandler(environment string, logger logging.Logger, checks map[string]HealthCheck) *HealthHandler {
	filtered := make(map[string]HealthCheck, len(checks))
	for name, check := range checks {
		if check != nil {
			filtered[name] = check
		}
	}
	return &HealthHandler{
		environment: environment,
		started:     time.Now(),
		now:         time.Now,
		checks:      filtered,
		logger:      logger,
	}
}

// Check godoc
// @Summary Health check
// @Description Reports uptime and the status of configured dependencies.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	now := h.now()
	resp := HealthResponse{
		Status:      StatusOK,
		Timestamp:   now.UTC(),
		Uptime:      now.Sub(h.started).Seconds(),
		Environment: h.environment,
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn(ctx, "health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "error: " + err.Error()
			resp.Status = StatusDegraded
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != StatusOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
