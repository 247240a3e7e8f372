// Package handler implements the forwarder's HTTP endpoints.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-forwarder/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

type healthResponse struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	BackendConfigured bool   `json:"backend_configured"`
	SigningEnabled    bool   `json:"signing_enabled"`
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return writeJSON(c, http.StatusOK, healthResponse{Status: "ok"})
}

// Status returns forwarder status information. The backend URL itself is
// never included.
func (h *HealthHandler) Status(c echo.Context) error {
	return writeJSON(c, http.StatusOK, statusResponse{
		Status:            "ok",
		Version:           string(h.version),
		BackendConfigured: h.cfg.Backend.URL != "",
		SigningEnabled:    h.cfg.SigningEnabled(),
	})
}
