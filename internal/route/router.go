package route

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
)

// Decision is the outcome of routing a request. It is one of Forward,
// ServeFile, ServeFallback or MethodNotAllowed.
type Decision interface {
	decision()
}

// Forward sends the request to the upstream host.
type Forward struct {
	Method string
	URI    string
}

// ServeFile serves Path from the document root.
type ServeFile struct {
	Path string
}

// ServeFallback serves the SPA entry document at Path.
type ServeFallback struct {
	Path string
}

// MethodNotAllowed rejects a method that has no meaning for the path.
// Allow lists the methods that are accepted.
type MethodNotAllowed struct {
	Method string
	Allow  string
}

func (Forward) decision()          {}
func (ServeFile) decision()        {}
func (ServeFallback) decision()    {}
func (MethodNotAllowed) decision() {}

const (
	allowForwarded = "GET, HEAD, POST, OPTIONS"
	allowLocal     = "GET, HEAD, OPTIONS"
)

// DirChecker reports whether a request path names a directory under the document root.
type DirChecker interface {
	IsDir(path string) (bool, error)
}

// Router maps requests to decisions. It holds no mutable state.
type Router struct {
	prefixes Prefixes
	dirs     DirChecker
	fallback string
	logger   *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(prefixes Prefixes, dirs DirChecker, cfg *config.Config, logger *slog.Logger) *Router {
	return &Router{
		prefixes: prefixes,
		dirs:     dirs,
		fallback: cfg.Static.FallbackPath(),
		logger:   logger.With("component", "router"),
	}
}

// Route decides how to handle a request for uri (raw path plus query).
// OPTIONS is answered by the preflight middleware before routing.
func (r *Router) Route(method, uri string) Decision {
	if _, ok := r.prefixes.Match(uri); ok {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
			return Forward{Method: method, URI: uri}
		}
		return MethodNotAllowed{Method: method, Allow: allowForwarded}
	}

	if method != http.MethodGet && method != http.MethodHead {
		return MethodNotAllowed{Method: method, Allow: allowLocal}
	}

	p := localPath(uri)
	if p == "/" || hasExtension(p) {
		return ServeFile{Path: p}
	}

	isDir, err := r.dirs.IsDir(p)
	if err != nil {
		// Any filesystem error counts as "not a directory". This also hides
		// e.g. permission errors on real directories.
		r.logger.Debug("directory check failed; serving fallback", "path", p, "err", err)
		return ServeFallback{Path: r.fallback}
	}
	if !isDir {
		return ServeFallback{Path: r.fallback}
	}
	return ServeFile{Path: p}
}

// localPath strips the query string and percent-decoding from uri.
func localPath(uri string) string {
	p, _, _ := strings.Cut(uri, "?")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if p == "" {
		return "/"
	}
	return p
}

// hasExtension reports whether the final path segment contains a dot.
func hasExtension(p string) bool {
	return strings.Contains(p[strings.LastIndex(p, "/")+1:], ".")
}
