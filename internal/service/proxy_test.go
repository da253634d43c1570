package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iwalton3/swapi-vanilla-dx/internal/client"
	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
	"github.com/iwalton3/swapi-vanilla-dx/internal/model"
)

func newTestService(t *testing.T, baseURL string) *ProxyService {
	t.Helper()
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			UserAgent:       "Mozilla/5.0",
			TimeoutSeconds:  5,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProxyService(client.NewUpstreamClient(cfg, logger, nil), cfg, logger)
}

func TestFilterRequestHeaders(t *testing.T) {
	s := &ProxyService{userAgent: "Mozilla/5.0"}
	src := http.Header{
		"Accept":          {"application/json"},
		"Content-Type":    {"text/plain"},
		"User-Agent":      {"curl/8.0"},
		"Cookie":          {"a=1", "b=2"},
		"Authorization":   {"Bearer secret"},
		"Connection":      {"keep-alive"},
		"X-Forwarded-For": {"1.2.3.4"},
	}

	dst := s.filterRequestHeaders(src)

	want := http.Header{
		"User-Agent":   {"curl/8.0"},
		"Content-Type": {"text/plain"},
		"Cookie":       {"a=1; b=2"},
	}
	if len(dst) != len(want) {
		t.Errorf("forwarded %d headers (%v), want %d", len(dst), dst, len(want))
	}
	for key := range want {
		if got := dst.Get(key); got != want.Get(key) {
			t.Errorf("header %q = %q, want %q", key, got, want.Get(key))
		}
	}
}

func TestFilterRequestHeaders_Defaults(t *testing.T) {
	s := &ProxyService{userAgent: "Mozilla/5.0"}

	dst := s.filterRequestHeaders(http.Header{})

	if got := dst.Get("User-Agent"); got != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q, want %q", got, "Mozilla/5.0")
	}
	if got := dst.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	if _, ok := dst["Cookie"]; ok {
		t.Error("Cookie should not be sent when absent on the inbound request")
	}
}

func TestFilterResponseHeaders(t *testing.T) {
	s := &ProxyService{}
	src := http.Header{
		"Content-Type":                {"application/json"},
		"Content-Length":              {"11"},
		"Transfer-Encoding":           {"chunked"},
		"Connection":                  {"close"},
		"Set-Cookie":                  {"session=abc; Secure; HttpOnly", "theme=dark;Secure"},
		"X-Upstream":                  {"yes"},
		"Access-Control-Allow-Origin": {"https://iwalton.com"},
	}

	dst := s.filterResponseHeaders(src)

	tests := []struct {
		name string
		key  string
		want []string
	}{
		{"Content-Type kept", "Content-Type", []string{"application/json"}},
		{"Content-Length kept", "Content-Length", []string{"11"}},
		{"custom header kept", "X-Upstream", []string{"yes"}},
		{"Transfer-Encoding dropped", "Transfer-Encoding", nil},
		{"Connection dropped", "Connection", nil},
		{"Set-Cookie Secure stripped", "Set-Cookie", []string{"session=abc; HttpOnly", "theme=dark"}},
		{"CORS origin replaced", "Access-Control-Allow-Origin", []string{"*"}},
		{"CORS methods added", "Access-Control-Allow-Methods", []string{"GET, POST, OPTIONS"}},
		{"CORS headers added", "Access-Control-Allow-Headers", []string{"Content-Type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dst.Values(tt.key)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("header %q = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestStripSecure(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"session=abc; Secure; HttpOnly", "session=abc; HttpOnly"},
		{"session=abc;Secure;HttpOnly", "session=abc; HttpOnly"},
		{"session=abc; HttpOnly; Secure", "session=abc; HttpOnly"},
		{"session=abc; secure", "session=abc"},
		{"session=abc; Path=/; SameSite=Lax", "session=abc; Path=/; SameSite=Lax"},
		{"Secure=value; Path=/", "Secure=value; Path=/"},
		{"session=abc; SecureFlag=1", "session=abc; SecureFlag=1"},
		{"session=abc;", "session=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := StripSecure(tt.in); got != tt.want {
				t.Errorf("StripSecure(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildUpstreamURL(t *testing.T) {
	s := &ProxyService{baseURL: "https://iwalton.com"}

	tests := []struct {
		uri  string
		want string
	}{
		{"/spa-api/ping", "https://iwalton.com/spa-api/ping"},
		{"/spa-api/search?q=a%20b&x=1", "https://iwalton.com/spa-api/search?q=a%20b&x=1"},
		{"/theme/main.css", "https://iwalton.com/theme/main.css"},
		{"/spwg-api/a%2Fb", "https://iwalton.com/spwg-api/a%2Fb"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			if got := s.buildUpstreamURL(tt.uri); got != tt.want {
				t.Errorf("buildUpstreamURL(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestForward_HappyPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RequestURI() != "/spa-api/ping?x=1" {
			t.Errorf("upstream URI = %q, want %q", r.URL.RequestURI(), "/spa-api/ping?x=1")
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization must not be forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Set-Cookie", "session=abc; Secure; HttpOnly")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL)

	resp, err := svc.Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		URI:    "/spa-api/ping?x=1",
		Header: http.Header{"Authorization": {"Bearer x"}},
	})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q, want %q", body, `{"ok":true}`)
	}
	if got := resp.Header.Get("Set-Cookie"); got != "session=abc; HttpOnly" {
		t.Errorf("Set-Cookie = %q, want %q", got, "session=abc; HttpOnly")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestForward_POSTBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Got-Method", r.Method)
		w.Header().Set("X-Got-Content-Type", r.Header.Get("Content-Type"))
		_, _ = w.Write(body)
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL)

	tests := []struct {
		name          string
		method        string
		body          string
		contentLength int64
		want          string
	}{
		{"post sends declared bytes", http.MethodPost, `{"a":1}`, 7, `{"a":1}`},
		{"post truncates to declared length", http.MethodPost, `{"a":1}trailing`, 7, `{"a":1}`},
		{"post without length sends nothing", http.MethodPost, `{"a":1}`, 0, ""},
		{"get never sends a body", http.MethodGet, `{"a":1}`, 7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Forward(&model.ProxyRequest{
				Ctx:           context.Background(),
				Method:        tt.method,
				URI:           "/spa-api/echo",
				Header:        http.Header{},
				Body:          strings.NewReader(tt.body),
				ContentLength: tt.contentLength,
			})
			if err != nil {
				t.Fatalf("Forward() error = %v", err)
			}
			defer func() { _ = resp.Body.Close() }()

			got, _ := io.ReadAll(resp.Body)
			if string(got) != tt.want {
				t.Errorf("upstream received %q, want %q", got, tt.want)
			}
			if m := resp.Header.Get("X-Got-Method"); m != tt.method {
				t.Errorf("upstream method = %q, want %q", m, tt.method)
			}
			if ct := resp.Header.Get("X-Got-Content-Type"); ct != "application/json" {
				t.Errorf("upstream Content-Type = %q, want default application/json", ct)
			}
		})
	}
}

func TestForward_ShortBody(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1")

	_, err := svc.Forward(&model.ProxyRequest{
		Ctx:           context.Background(),
		Method:        http.MethodPost,
		URI:           "/spa-api/echo",
		Header:        http.Header{},
		Body:          strings.NewReader("abc"),
		ContentLength: 10,
	})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Forward() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestForward_UpstreamErrorStatusRelayed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL)

	resp, err := svc.Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		URI:    "/spa-api/secret",
		Header: http.Header{},
	})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestForward_UnreachableUpstream(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1")

	_, err := svc.Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		URI:    "/spa-api/ping",
		Header: http.Header{},
	})
	if err == nil {
		t.Fatal("Forward() expected error for unreachable upstream, got nil")
	}
	if !strings.Contains(err.Error(), "forward to upstream") {
		t.Errorf("error = %q, want it wrapped with context", err)
	}
}
