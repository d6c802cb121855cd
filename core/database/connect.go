package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/coachbot/core/logger"
)

// Connect opens the database connection, configures the pool, and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driver := cfg.DriverName()
	switch driver {
	case DriverPostgres:
		if err := waitReady(ctx, driver, cfg.DSN(), 30*time.Second); err != nil {
			return nil, err
		}
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db connect: %w", err)
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	took := logger.Took(start)
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			slog.String("status", "error"),
			slog.String("driver", driver),
			slog.String("host", cfg.Host),
			slog.String("db", cfg.Name),
			slog.String("path", cfg.Path),
			slog.Duration("duration", took),
			logger.Err(err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.poolSize()
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)

	logger.Info(ctx, "db", "db.connect",
		slog.String("status", "ok"),
		slog.String("driver", driver),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.String("path", cfg.Path),
		slog.Int("pool_open", pool),
		slog.Duration("duration", took),
	)
	return db, nil
}

// waitReady retries a ping until the server accepts connections or timeout elapses.
func waitReady(ctx context.Context, driver, dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		db, err := sqlx.Open(driver, dsn)
		if err == nil {
			err = db.PingContext(ctx)
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
