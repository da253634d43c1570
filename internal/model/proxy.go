// Package model defines shared types for the dev server.
package model

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// URI is the raw request target: path plus query string, never re-encoded.
	URI           string
	Header        http.Header
	Body          io.Reader
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// File is a static file resolved under the document root.
type File struct {
	Name        string
	ContentType string
	ModTime     time.Time
	Body        []byte
}
