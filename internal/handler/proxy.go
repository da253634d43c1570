package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/model"
	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
	"github.com/iwalton3/swapi-vanilla-dx/internal/service"
)

// ProxyHandler forwards requests to the upstream API host.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Forward proxies the request to the upstream host and streams the response back.
func (h *ProxyHandler) Forward(c echo.Context, d route.Forward) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        d.Method,
		URI:           d.URI,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Upstream headers replace anything set by middleware (e.g. X-Request-Id).
	for key, vals := range resp.Header {
		c.Response().Header()[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent, so a copy failure (client disconnect,
	// upstream reset) can only truncate the body. Log it and move on.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", d.URI,
		)
	}

	return nil
}

// mapError turns a transport failure into a 500 carrying a short category
// and the underlying error text.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":  errorCategory(err),
		"detail": err.Error(),
	})
}

func errorCategory(err error) string {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return "request body incomplete"
	}

	if errors.Is(err, context.Canceled) {
		return "client disconnected"
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "upstream request timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "upstream host unreachable"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "upstream connection failed"
	}

	return "upstream request failed"
}
