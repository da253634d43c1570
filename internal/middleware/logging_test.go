package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"forwarded request", "/spa-api/ping", "route=proxy"},
		{"local request", "/app.js", "route=local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			e := echo.New()
			e.Use(RequestLogger(logger, route.Prefixes{"/spa-api"}))
			e.GET("/*", func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			line := buf.String()
			if !strings.Contains(line, tt.want) {
				t.Errorf("log line = %q, want it to contain %q", line, tt.want)
			}
			if !strings.Contains(line, "status=200") {
				t.Errorf("log line = %q, want status=200", line)
			}
		})
	}
}
