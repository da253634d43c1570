package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/iwalton3/swapi-vanilla-dx/internal/client"
	"github.com/iwalton3/swapi-vanilla-dx/internal/config"
	"github.com/iwalton3/swapi-vanilla-dx/internal/handler"
	"github.com/iwalton3/swapi-vanilla-dx/internal/metrics"
	"github.com/iwalton3/swapi-vanilla-dx/internal/route"
	"github.com/iwalton3/swapi-vanilla-dx/internal/server"
	"github.com/iwalton3/swapi-vanilla-dx/internal/service"
	"github.com/iwalton3/swapi-vanilla-dx/internal/static"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("devserver"),
		kong.Description("Serve a single-page app locally and forward API prefixes to a remote host."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.WithLogger(newFxLogger),
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			route.NewPrefixes,
			newDocRoot,
			func(r *static.Responder) route.DirChecker { return r },
			route.NewRouter,
			server.NewEcho,
			client.NewUpstreamClient,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewStaticHandler,
			handler.NewDevHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterMetrics, handler.RegisterRoutes, warnConfigPermissions, server.Start),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newFxLogger routes fx lifecycle events through slog at debug level.
func newFxLogger(logger *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: logger}
	l.UseLogLevel(slog.LevelDebug)
	return l
}

// newDocRoot opens the document root. os.Root confines every lookup to the
// directory, symlinks included.
func newDocRoot(lc fx.Lifecycle, cfg *config.Config) (*static.Responder, error) {
	root, err := os.OpenRoot(cfg.Static.Root)
	if err != nil {
		return nil, fmt.Errorf("open document root: %w", err)
	}
	lc.Append(fx.StopHook(root.Close))
	return static.NewResponder(root.FS()), nil
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}
