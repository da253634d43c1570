// Package handler contains the echo handlers of the dev server.
package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
)

// DevHandler is the catch-all handler. It routes every request once and
// dispatches to the proxy or static handler.
type DevHandler struct {
	router *route.Router
	proxy  *ProxyHandler
	files  *StaticHandler
}

// NewDevHandler creates a DevHandler.
func NewDevHandler(router *route.Router, proxy *ProxyHandler, files *StaticHandler) *DevHandler {
	return &DevHandler{router: router, proxy: proxy, files: files}
}

// Handle routes the request and delegates to the matching handler.
func (h *DevHandler) Handle(c echo.Context) error {
	req := c.Request()

	switch d := h.router.Route(req.Method, route.RequestURI(req)).(type) {
	case route.Forward:
		return h.proxy.Forward(c, d)
	case route.ServeFile:
		return h.files.Serve(c, d.Path)
	case route.ServeFallback:
		return h.files.Serve(c, d.Path)
	case route.MethodNotAllowed:
		c.Response().Header().Set(echo.HeaderAllow, d.Allow)
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{
			"error": "method not allowed",
		})
	default:
		return fmt.Errorf("unhandled route decision %T", d)
	}
}
