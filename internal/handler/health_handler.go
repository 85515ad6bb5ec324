package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Checker probes one dependency
type Checker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checks  map[string]Checker
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler; checks are run by Ready
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}

// Ready handles GET /ready - every dependency must answer within the timeout
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	results := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[string]string, len(names))
	ready := true
	for i, name := range names {
		if results[i] != nil {
			ready = false
			status[name] = "unavailable"
			_ = c.Error(results[i])
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, response.Rejected(response.ErrCodeServiceUnavailable, "Not ready", status))
		return
	}
	c.JSON(http.StatusOK, response.Success(status))
}
