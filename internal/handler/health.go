package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
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

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	UpstreamURL string   `json:"upstream_url"`
	Prefixes    []string `json:"prefixes"`
	Root        string   `json:"root"`
	Fallback    string   `json:"fallback"`
}

// Status returns the effective routing configuration.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:      "ok",
		Version:     string(h.version),
		UpstreamURL: h.cfg.Upstream.BaseURL,
		Prefixes:    h.cfg.Upstream.Prefixes,
		Root:        h.cfg.Static.Root,
		Fallback:    h.cfg.Static.FallbackPath(),
	})
}
