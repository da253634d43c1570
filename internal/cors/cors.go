// Package cors holds the permissive CORS headers sent on preflight and
// forwarded responses.
package cors

import "net/http"

const (
	AllowOrigin  = "*"
	AllowMethods = "GET, POST, OPTIONS"
	AllowHeaders = "Content-Type"
)

// Apply sets the three CORS headers on h, replacing any values already present.
func Apply(h http.Header) {
	h.Set("Access-Control-Allow-Origin", AllowOrigin)
	h.Set("Access-Control-Allow-Methods", AllowMethods)
	h.Set("Access-Control-Allow-Headers", AllowHeaders)
}
