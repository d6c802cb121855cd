package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/coachbot/core/logger"
)

// RunMigrations applies all up migrations for the configured driver. Files are
// read from <migrations_dir>/<postgres|sqlite>.
func RunMigrations(ctx context.Context, cfg Config) error {
	dir, err := migrationsDir(cfg)
	if err != nil {
		return err
	}
	files := listMigrationFiles(dir)
	logger.Debug(ctx, "db.migrate", "resolve",
		slog.String("path", dir),
		slog.Int("count", len(files)),
	)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.MigrateURL())
	if err != nil {
		logger.Error(ctx, "db.migrate", "init", slog.String("status", "error"), logger.Err(err))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, "db.migrate", "close", logger.Err(errors.Join(srcErr, dbErr)))
		}
	}()

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "apply",
			slog.String("status", "error"),
			slog.Duration("duration", took),
			logger.Err(upErr),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	logger.Info(ctx, "db.migrate", "summary",
		slog.String("status", "ok"),
		slog.String("driver", cfg.DriverName()),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", countApplied(files, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", took),
	)
	return nil
}

func migrationsDir(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.MigrationsDir)
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		base = filepath.Join(cwd, "migrations")
	}
	sub := "postgres"
	if cfg.DriverName() == DriverSQLite {
		sub = "sqlite"
	}
	return filepath.Join(base, sub), nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	c := 0
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			c++
		}
	}
	return c
}
