// Package static resolves request paths to files under the document root.
package static

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/iwalton3/swapi-vanilla-dx/internal/model"
)

// ErrNotFound is returned when a path does not resolve to a readable file.
var ErrNotFound = errors.New("file not found")

// errTraversal is returned for paths containing ".." segments.
var errTraversal = errors.New("path escapes document root")

const indexFile = "index.html"

// contentTypes takes precedence over the platform mime table so that the
// common web asset types are stable across systems.
var contentTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".map":   "application/json",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".txt":   "text/plain",
	".wasm":  "application/wasm",
}

// Responder serves files from a filesystem rooted at the document root.
type Responder struct {
	fsys fs.FS
}

// NewResponder creates a Responder over fsys. In production fsys comes from
// os.Root, which refuses to resolve names outside the root.
func NewResponder(fsys fs.FS) *Responder {
	return &Responder{fsys: fsys}
}

// Serve resolves urlPath and returns the file. Directories resolve to their
// index.html. Anything missing or unreadable yields ErrNotFound.
func (r *Responder) Serve(urlPath string) (*model.File, error) {
	name, err := fsName(urlPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, urlPath, err)
	}

	info, err := fs.Stat(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, urlPath, err)
	}
	if info.IsDir() {
		name = path.Join(name, indexFile)
		info, err = fs.Stat(r.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, urlPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s: index is a directory", ErrNotFound, urlPath)
		}
	}

	body, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, urlPath, err)
	}

	return &model.File{
		Name:        name,
		ContentType: ContentType(name),
		ModTime:     info.ModTime(),
		Body:        body,
	}, nil
}

// IsDir reports whether urlPath names an existing directory. A missing path
// is (false, nil); any other failure is returned as an error.
func (r *Responder) IsDir(urlPath string) (bool, error) {
	name, err := fsName(urlPath)
	if err != nil {
		return false, err
	}
	info, err := fs.Stat(r.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// ContentType returns the MIME type for a file name based on its extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// fsName converts a request path into an fs.FS name relative to the root.
func fsName(urlPath string) (string, error) {
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == ".." {
			return "", errTraversal
		}
	}
	name := strings.Trim(path.Clean("/"+urlPath), "/")
	if name == "" {
		return ".", nil
	}
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid path %q", urlPath)
	}
	return name, nil
}
