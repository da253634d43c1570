package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
	"github.com/iwalton3/swapi-vanilla-dx/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Everything outside the reserved prefix goes through DevHandler.
func RegisterRoutes(e *echo.Echo, dev *DevHandler, health *HealthHandler) {
	e.GET(config.InternalPrefix+"/healthz", health.Healthz)
	e.GET(config.InternalPrefix+"/status", health.Status)

	e.Any("/*", dev.Handle)
}

// RegisterMetrics exposes the Prometheus registry when metrics are enabled.
func RegisterMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
