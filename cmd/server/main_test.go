package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_DatabaseDirectoryError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := run(&config.Config{DBPath: filepath.Join(blocker, "reviews.db")}, quietLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating database directory")
}

func TestRun_ClosesRedisWhenStartupFails(t *testing.T) {
	mr := miniredis.RunT(t)

	// A directory cannot be opened as a database, so server.New fails
	// after the Redis client was created.
	cfg := &config.Config{
		DBPath:          t.TempDir(),
		RedisAddr:       mr.Addr(),
		CatalogCacheTTL: time.Minute,
	}
	err := run(cfg, quietLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating server")
	assert.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 },
		time.Second, 10*time.Millisecond, "redis connection left open")
}
