package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/static"
)

// StaticHandler serves files from the document root.
type StaticHandler struct {
	files  *static.Responder
	logger *slog.Logger
}

// NewStaticHandler creates a StaticHandler.
func NewStaticHandler(files *static.Responder, logger *slog.Logger) *StaticHandler {
	return &StaticHandler{
		files:  files,
		logger: logger.With("component", "static_handler"),
	}
}

// Serve writes the file at path, or a 404 when it cannot be resolved.
func (h *StaticHandler) Serve(c echo.Context, path string) error {
	f, err := h.files.Serve(path)
	if errors.Is(err, static.ErrNotFound) {
		h.logger.Debug("static file not found", "path", path, "err", err)
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "file not found",
		})
	}
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, f.ContentType)
	http.ServeContent(c.Response(), c.Request(), f.Name, f.ModTime, bytes.NewReader(f.Body))
	return nil
}
