package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/coachbot/core/config"
	coredatabase "github.com/m3rciful/coachbot/core/database"
	"github.com/m3rciful/coachbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
// Database is optional: bots that keep their state outside SQL leave it nil.
type Options struct {
	Config   *coreconfig.Config
	Database *coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when no database was requested.
	DB *sqlx.DB
}

// Run initializes the logger and, when requested, connects to the database
// and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.Database == nil {
		logger.Info(ctx, "app", "bootstrap.done", slog.Bool("database", false))
		return &Result{}, nil
	}

	start := time.Now()
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, *opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, *opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	logger.Info(ctx, "app", "bootstrap.done",
		slog.Bool("database", true),
		slog.String("driver", opts.Database.DriverName()),
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}
