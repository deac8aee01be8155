// Package bootstrap holds the startup steps shared by the commands:
// configuration, logging, and connections.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/ses-tracking/internal/config"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
	"github.com/ignite/ses-tracking/internal/repository/postgres"
)

// DefaultConfigPath is read when no --config flag is given. A missing file
// is not an error.
const DefaultConfigPath = "config/config.yaml"

// Load reads configuration and applies its logging settings.
func Load(path string) (*config.Config, error) {
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return nil, err
	}

	level, ok := logger.ParseLevel(cfg.Logging.Level)
	if !ok {
		logger.Warn("unknown log level, using info", "level", cfg.Logging.Level)
	}
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Logging.Redact())
	return cfg, nil
}

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (set DATABASE_URL)")
	}
	return postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
}

// OpenRedis connects to url. It returns nil when url is empty or the server
// does not answer, in which case callers fall back to PostgreSQL locks.
func OpenRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}

	var client *redis.Client
	opts, err := redis.ParseURL(url)
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: url})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, falling back to postgres advisory locks", "error", err)
		client.Close()
		return nil
	}
	return client
}
