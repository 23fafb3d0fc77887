// Command seed imports the course catalog (courses, terms, instructors and
// teaching records) from a YAML file into the server's database.
//
//	go run ./cmd/seed -file catalog.yaml
//
// It reads the same configuration as the server (DB_PATH, REDIS_ADDR, ...),
// and clears the cached catalog listings afterwards so the server picks the
// new data up immediately.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/config"
	"github.com/sakif/course-review/internal/repository/sqlite"
)

func main() {
	file := flag.String("file", "catalog.yaml", "YAML catalog to import")
	dbPath := flag.String("db", "", "database path (default: DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	if err := run(context.Background(), cfg, *file, logger); err != nil {
		logger.Error("seed failed", slog.String("file", *file), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, file string, logger *slog.Logger) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	cat, err := parseCatalog(f)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := cat.apply(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("catalog imported",
		slog.String("database", cfg.DBPath),
		slog.Int("courses", st.Courses),
		slog.Int("terms", st.Terms),
		slog.Int("instructors", st.Instructors),
		slog.Int("teachingRecords", st.TeachingRecords),
	)

	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cache.NewCatalogCache(client, cache.DefaultPrefix, cfg.CatalogCacheTTL).Invalidate(ctx); err != nil {
		// The entries expire on their own within CATALOG_CACHE_TTL.
		logger.Warn("could not clear catalog cache", slog.String("error", err.Error()))
	}
	return nil
}
