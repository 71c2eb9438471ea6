package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/cataloger/internal/bundle"
	"github.com/lepinkainen/cataloger/internal/cache"
	"github.com/lepinkainen/cataloger/internal/config"
	"github.com/lepinkainen/cataloger/internal/lookup"
	"github.com/lepinkainen/cataloger/internal/ratelimit"
	"github.com/lepinkainen/cataloger/internal/server"
	"github.com/lepinkainen/cataloger/internal/session"
	"github.com/lepinkainen/cataloger/internal/sources"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// CLI represents the complete command structure for the cataloger application
type CLI struct {
	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 168h for 7 days)" default:"168h"`

	Serve ServeCmd `cmd:"" help:"Run the catalog lookup HTTP server"`
	Cache CacheCmd `cmd:"" help:"Cache maintenance commands"`
}

// ServeCmd represents the serve command
type ServeCmd struct {
	Port int `short:"p" help:"Port to listen on (overrides config)"`
}

// CacheCmd groups cache maintenance subcommands
type CacheCmd struct {
	Invalidate   cache.InvalidateCmd   `cmd:"" help:"Clear all cached responses for one source"`
	ClearExpired cache.ClearExpiredCmd `cmd:"" help:"Reclaim cache entries past their TTL"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging()
	initConfig()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("cataloger"),
		kong.Description("ISBN lookup service that builds Square POS catalog imports."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)

	err := ctx.Run()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()

	if err := config.BindEnv(); err != nil {
		slog.Error("Failed to bind environment variables", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)

	if cli.Serve.Port != 0 {
		viper.Set("server.port", cli.Serve.Port)
	}
}

// Run starts the HTTP server with the full lookup pipeline wired up and
// blocks until an interrupt or termination signal arrives.
func (s *ServeCmd) Run() error {
	cfg := config.Load()

	db, err := cache.New(cfg.CacheDBFile, cache.WithDefaultTTL(cfg.CacheTTL))
	if err != nil {
		// A broken cache degrades to direct API fetches instead of
		// refusing to start.
		slog.Warn("Cache unavailable, running without caching", "path", cfg.CacheDBFile, "error", err)
		db = nil
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	limiters := ratelimit.NewRegistry()
	for name, rl := range cfg.RateLimits {
		limiters.Add(name, rl.Requests, rl.Window)
	}

	metadata, images := sources.Build(db, limiters, sources.Options{
		ISBNdbAPIKey:      cfg.ISBNdbAPIKey,
		GoogleBooksAPIKey: cfg.GoogleBooksAPIKey,
	})

	orchestrator := lookup.New(metadata, images, lookup.Config{
		BatchLimit:  cfg.BatchLimit,
		Concurrency: cfg.LookupConcurrency,
	})

	store := session.NewStore(cfg.SessionTTL, cfg.SessionLimit)
	sweeper := session.NewSweeper(store, cfg.SessionSweepInterval, slog.Default())
	packager := bundle.New(bundle.WithConcurrency(cfg.BundleConcurrency))

	srv := server.New(orchestrator, store, packager, server.Config{
		Port:              cfg.ServerPort,
		RequestsPerWindow: cfg.RequestLimit.Requests,
		RequestWindow:     cfg.RequestLimit.Window,
		Logger:            slog.Default(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("CATALOGER_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
