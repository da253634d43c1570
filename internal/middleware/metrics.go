package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/metrics"
	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request. The route label is the matched forward prefix or
// "local".
func MetricsMiddleware(m *metrics.Metrics, prefixes route.Prefixes) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()

			err := next(c)

			// Resolve the actual status code. When a handler returns an
			// *echo.HTTPError, the response status hasn't been written yet;
			// Echo's central error handler will do that later.
			statusCode := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					statusCode = he.Code
				}
			}

			status := strconv.Itoa(statusCode)
			method := metrics.NormalizeMethod(c.Request().Method)
			label := prefixes.Classify(route.RequestURI(c.Request()))
			duration := time.Since(start).Seconds()

			m.RequestsTotal.WithLabelValues(method, status, label).Inc()
			m.RequestDuration.WithLabelValues(method, status, label).Observe(duration)

			return err
		}
	}
}
