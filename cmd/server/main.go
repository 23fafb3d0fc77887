// Package main is the entry point for the course review server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (environment and an optional .env file)
// 2. Create the external integrations (logger, Redis, mail)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, ...). The catalog data is loaded separately with
// cmd/seed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/config"
	"github.com/sakif/course-review/internal/mail"
	"github.com/sakif/course-review/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Defaults, then .env, then the real environment (see internal/config).
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the minimum level: debug, info, warn or error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// os.Exit skips deferred calls, so everything that needs closing lives
	// in run and main only turns its error into an exit code.
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`; sqlite creates the file itself.
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	var deps server.Deps

	// === 4. CATALOG CACHE ===
	// Redis is optional. Without it (or when it is down at startup) listings
	// are rebuilt from the database on every request.
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, catalog cache disabled",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		} else {
			deps.Cache = cache.NewCatalogCache(client, cache.DefaultPrefix, cfg.CatalogCacheTTL)
		}
	}

	// === 5. MAIL ===
	// Without a SendGrid key, emails (verification codes, reset links) are
	// written to the log so local development still works end to end.
	if cfg.SendGridAPIKey != "" {
		deps.Mailer = mail.NewSendGridMailer(cfg.SendGridAPIKey, "Course Review", cfg.MailFrom, logger)
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails are logged instead of sent")
		deps.Mailer = mail.NewConsoleMailer(logger)
	}

	// === 6. CREATE AND START THE SERVER ===
	// New closes the database itself when it fails; Start closes it on the
	// way out.
	srv, err := server.New(context.Background(), cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
