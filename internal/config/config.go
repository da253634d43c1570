// Package config handles TOML/YAML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// InternalPrefix is the path prefix reserved for the server's own endpoints.
const InternalPrefix = "/__devserver"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"devserver.toml",
	"devserver.yaml",
	"configs/config.toml",
}

// defaultPrefixes are the request path prefixes forwarded upstream when none are configured.
var defaultPrefixes = []string{"/spa-api", "/spwg-api", "/theme/"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML or YAML config file.',env='DEVSERVER_CONFIG'"`
	Host     string `kong:"help='Listen host (overrides config).',env='DEVSERVER_HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='DEVSERVER_PORT'"`
	Upstream string `kong:"help='Upstream base URL (overrides config).',env='DEVSERVER_UPSTREAM'"`
	Root     string `kong:"help='Document root for static files (overrides config).',env='DEVSERVER_ROOT'"`
	Fallback string `kong:"help='SPA entry document relative to the root (overrides config).',env='DEVSERVER_FALLBACK'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Upstream UpstreamConfig `toml:"upstream" yaml:"upstream"`
	Static   StaticConfig   `toml:"static" yaml:"static"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host" yaml:"host"`
	Port         int             `toml:"port" yaml:"port"` // 0 means "use default" (9000)
	BodyMaxBytes int64           `toml:"body_max_bytes" yaml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
}

// UpstreamConfig holds the remote API host and forwarding settings.
type UpstreamConfig struct {
	BaseURL         string   `toml:"base_url" yaml:"base_url"`
	Prefixes        []string `toml:"prefixes" yaml:"prefixes"`
	UserAgent       string   `toml:"user_agent" yaml:"user_agent"`
	TimeoutSeconds  int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	IdleConnections int      `toml:"idle_connections" yaml:"idle_connections"`
}

// StaticConfig holds the local document root and SPA entry document.
type StaticConfig struct {
	Root     string `toml:"root" yaml:"root"`
	Fallback string `toml:"fallback" yaml:"fallback"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Load reads the config file (if any) and applies CLI overrides.
// When no explicit path is given (via --config or DEVSERVER_CONFIG), it searches
// configSearchPaths; finding nothing is not an error, defaults are used instead.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := unmarshal(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	return &cfg, nil
}

// unmarshal decodes data as YAML for .yaml/.yml files and as TOML otherwise.
func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Upstream != "" {
		c.Upstream.BaseURL = cli.Upstream
	}
	if cli.Root != "" {
		c.Static.Root = cli.Root
	}
	if cli.Fallback != "" {
		c.Static.Fallback = cli.Fallback
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url must include a host; got %q", c.Upstream.BaseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("upstream.base_url must not carry a query or fragment; got %q", c.Upstream.BaseURL)
	}

	for _, p := range c.Upstream.Prefixes {
		if p == "" || p[0] != '/' {
			return fmt.Errorf("upstream.prefixes entries must start with '/'; got %q", p)
		}
		if p == "/" {
			return fmt.Errorf("upstream.prefixes must not contain the root path")
		}
		if overlaps(p, InternalPrefix) {
			return fmt.Errorf("upstream.prefixes entry %q conflicts with reserved route %q", p, InternalPrefix)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Fallback document is resolved inside the document root.
	fb := filepath.ToSlash(c.Static.Fallback)
	if strings.HasPrefix(fb, "/") {
		return fmt.Errorf("static.fallback must be relative to static.root; got %q", c.Static.Fallback)
	}
	for _, seg := range strings.Split(fb, "/") {
		if seg == ".." {
			return fmt.Errorf("static.fallback must not contain '..'; got %q", c.Static.Fallback)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, prefix := range c.Upstream.Prefixes {
			if overlaps(p, prefix) {
				return fmt.Errorf("metrics.path %q conflicts with forwarded prefix %q", p, prefix)
			}
		}
	}

	return nil
}

// overlaps reports whether either path is a prefix of the other.
func overlaps(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because neither TOML nor YAML
// decoding distinguishes an explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://iwalton.com"
	}
	if len(c.Upstream.Prefixes) == 0 {
		c.Upstream.Prefixes = append([]string(nil), defaultPrefixes...)
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "Mozilla/5.0"
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 10
	}
	if c.Static.Root == "" {
		c.Static.Root = "."
	}
	if c.Static.Fallback == "" {
		c.Static.Fallback = "index.html"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = InternalPrefix + "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FallbackPath returns the SPA entry document as a request path.
func (c *StaticConfig) FallbackPath() string {
	return "/" + strings.TrimPrefix(filepath.ToSlash(c.Fallback), "./")
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
