// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iwalton3/swapi-vanilla-dx/internal/client"
	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
	"github.com/iwalton3/swapi-vanilla-dx/internal/cors"
	"github.com/iwalton3/swapi-vanilla-dx/internal/model"
)

const defaultContentType = "application/json"

// droppedResponseHeaders are upstream response headers never relayed to the client.
var droppedResponseHeaders = map[string]bool{
	"Transfer-Encoding": true,
	"Connection":        true,
}

// ProxyService forwards requests to the single configured upstream host.
type ProxyService struct {
	client    *client.UpstreamClient
	logger    *slog.Logger
	baseURL   string
	userAgent string
}

// NewProxyService creates a ProxyService. The base URL has already been
// validated and stripped of its trailing slash by config.Load.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client:    c,
		logger:    logger.With("component", "proxy_service"),
		baseURL:   cfg.Upstream.BaseURL,
		userAgent: cfg.Upstream.UserAgent,
	}
}

// Forward sends a ProxyRequest upstream and returns the response with its
// headers rewritten for local development. Non-2xx upstream responses are
// returned like any other; only transport failures produce an error.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target := s.buildUpstreamURL(pr.URI)
	header := s.filterRequestHeaders(pr.Header)

	body, n, err := readBody(pr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("forwarding request",
		"method", pr.Method,
		"path", pr.URI,
		"target", target,
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, target, header, body, n)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("upstream error response",
			"status", resp.StatusCode,
			"reason", http.StatusText(resp.StatusCode),
			"path", pr.URI,
		)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)
	return resp, nil
}

// buildUpstreamURL appends the raw request target to the base URL verbatim.
func (s *ProxyService) buildUpstreamURL(uri string) string {
	return s.baseURL + uri
}

// filterRequestHeaders keeps only User-Agent, Content-Type and Cookie,
// filling in defaults for the first two.
func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)

	ua := src.Get("User-Agent")
	if ua == "" {
		ua = s.userAgent
	}
	dst.Set("User-Agent", ua)

	ct := src.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	dst.Set("Content-Type", ct)

	if cookies := src.Values("Cookie"); len(cookies) > 0 {
		dst.Set("Cookie", strings.Join(cookies, "; "))
	}
	return dst
}

// filterResponseHeaders copies every upstream header except the dropped ones,
// strips the Secure attribute from cookies and sets the CORS headers.
func (s *ProxyService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src)+3)
	for key, vals := range src {
		key = http.CanonicalHeaderKey(key)
		if droppedResponseHeaders[key] {
			continue
		}
		if key == "Set-Cookie" {
			rewritten := make([]string, 0, len(vals))
			for _, v := range vals {
				rewritten = append(rewritten, StripSecure(v))
			}
			dst[key] = rewritten
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	cors.Apply(dst)
	return dst
}

// StripSecure removes the Secure attribute from a Set-Cookie value so the
// cookie is stored by browsers talking plain HTTP to localhost. Attributes
// are re-joined with "; ".
func StripSecure(cookie string) string {
	parts := strings.Split(cookie, ";")
	kept := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i > 0 && (p == "" || strings.EqualFold(p, "Secure")) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "; ")
}

// readBody returns the POST body, read in full so redirects can replay it.
// Only Content-Length bytes are sent; a missing or zero length sends nothing.
func readBody(pr *model.ProxyRequest) (io.Reader, int64, error) {
	if pr.Method != http.MethodPost || pr.ContentLength <= 0 || pr.Body == nil {
		return nil, 0, nil
	}
	buf, err := io.ReadAll(io.LimitReader(pr.Body, pr.ContentLength))
	if err != nil {
		return nil, 0, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(buf)) != pr.ContentLength {
		return nil, 0, fmt.Errorf("read request body: got %d of %d bytes: %w", len(buf), pr.ContentLength, io.ErrUnexpectedEOF)
	}
	return bytes.NewReader(buf), int64(len(buf)), nil
}
