// Package route decides how each inbound request is handled: forwarded
// upstream, served from the document root, or answered with the SPA entry
// document.
package route

import (
	"net/http"
	"strings"

	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
)

// LocalLabel classifies requests that are not forwarded upstream.
const LocalLabel = "local"

// Prefixes is the set of request path prefixes forwarded upstream. It is the
// single source of truth for routing, log classification and metrics labels.
type Prefixes []string

// NewPrefixes returns the forwarded prefixes from config.
func NewPrefixes(cfg *config.Config) Prefixes {
	return append(Prefixes(nil), cfg.Upstream.Prefixes...)
}

// Match reports whether uri starts with a forwarded prefix and returns that prefix.
// uri is the raw request target, query string included.
func (p Prefixes) Match(uri string) (string, bool) {
	for _, prefix := range p {
		if strings.HasPrefix(uri, prefix) {
			return prefix, true
		}
	}
	return "", false
}

// Classify returns the matched prefix, or LocalLabel for local requests.
// The result has bounded cardinality and is safe to use as a metrics label.
func (p Prefixes) Classify(uri string) string {
	if prefix, ok := p.Match(uri); ok {
		return prefix
	}
	return LocalLabel
}

// RequestURI returns the raw request target of r, path plus query, exactly as
// the client sent it.
func RequestURI(r *http.Request) string {
	if strings.HasPrefix(r.RequestURI, "/") {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
