// Package server builds the Echo instance and ties its listener to the fx lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
	"github.com/iwalton3/swapi-vanilla-dx/internal/metrics"
	"github.com/iwalton3/swapi-vanilla-dx/internal/middleware"
	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
)

// NewEcho creates the Echo instance with the middleware chain. OPTIONS
// requests are answered before request ids are assigned so the preflight
// response carries only the CORS headers.
func NewEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, prefixes route.Prefixes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout stays disabled; slow upstreams are bounded by the client timeout.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger, prefixes))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m, prefixes))
	}
	e.Use(middleware.Preflight())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.StripHopByHop())

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

// Start binds the listen address on fx start and shuts the server down on stop.
// A bind failure aborts startup.
func Start(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"root", cfg.Static.Root,
				"fallback", cfg.Static.FallbackPath(),
			)
			for _, prefix := range cfg.Upstream.Prefixes {
				logger.Info("forwarding prefix", "prefix", prefix, "upstream", cfg.Upstream.BaseURL+prefix)
			}
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
