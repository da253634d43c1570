package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/cors"
)

// Preflight returns an Echo middleware that answers every OPTIONS request
// with 200, the CORS headers and an empty body. Nothing is forwarded.
func Preflight() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodOptions {
				return next(c)
			}
			cors.Apply(c.Response().Header())
			return c.NoContent(http.StatusOK)
		}
	}
}
