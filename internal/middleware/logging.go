// Package middleware provides Echo middleware for logging, metrics, CORS
// preflight and header hygiene.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
)

// RequestLogger returns an Echo middleware that logs each request with slog.
// The route attribute is "proxy" for forwarded requests and "local" otherwise.
func RequestLogger(logger *slog.Logger, prefixes route.Prefixes) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			kind := "local"
			if _, ok := prefixes.Match(route.RequestURI(req)); ok {
				kind = "proxy"
			}

			logger.Info("request",
				"route", kind,
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}
