package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/coachbot/core/config"
	coredatabase "github.com/m3rciful/coachbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	called := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			called = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil || called {
		t.Fatalf("database must not be opened without config")
	}
}

func TestRunConnectFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Driver: "sqlite"},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
