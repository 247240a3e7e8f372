package handler

import (
	"github.com/labstack/echo/v4"

	"edge-forwarder/internal/config"
	"edge-forwarder/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Every path
// and method not claimed by the process itself goes to the forwarder.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, forward *ForwardHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/forwarder/status", health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	e.Any("/*", forward.Handle)
}
