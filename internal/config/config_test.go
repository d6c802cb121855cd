package config

import (
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/coachbot/core/config"
	coredatabase "github.com/m3rciful/coachbot/core/database"
	"github.com/m3rciful/coachbot/internal/catalog"
)

func validConfig() Config {
	return Config{
		Config:  coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t"}},
		Admins:  AdminsConfig{IDs: []int64{10, 20}},
		Courses: []catalog.Course{{ID: "online_weights", Title: "Weights", Price: 599_000, Questionnaire: true}},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Storage.Driver != StorageFile || cfg.Storage.DataDir != "data" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Workflow.ReceiptAttempts != 3 {
		t.Fatalf("receipt attempts = %d", cfg.Workflow.ReceiptAttempts)
	}
	if cfg.Admins.SuperAdmin != 10 {
		t.Fatalf("super admin = %d, want first admin", cfg.Admins.SuperAdmin)
	}
	if cfg.UsesSQL() {
		t.Fatalf("file storage must not use SQL")
	}
	if cfg.CoreConfig().Telegram.RunMode != coreconfig.RunModeLongpoll {
		t.Fatalf("core config not normalized")
	}
}

func TestNormalizeSQLite(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = StorageConfig{Driver: "SQLite", DataDir: "/var/lib/coachbot"}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Database.DriverName() != coredatabase.DriverSQLite {
		t.Fatalf("driver = %q", cfg.Database.DriverName())
	}
	if want := filepath.Join("/var/lib/coachbot", "coachbot.db"); cfg.Database.Path != want {
		t.Fatalf("path = %q, want %q", cfg.Database.Path, want)
	}
	if !cfg.UsesSQL() {
		t.Fatalf("sqlite storage must use SQL")
	}
}

func TestSuperAdminJoinsAdmins(t *testing.T) {
	cfg := validConfig()
	cfg.Admins = AdminsConfig{IDs: []int64{10, 10}, SuperAdmin: 5}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(cfg.Admins.IDs) != 2 || cfg.Admins.IDs[0] != 5 || cfg.Admins.IDs[1] != 10 {
		t.Fatalf("ids = %v", cfg.Admins.IDs)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no admins":       func(c *Config) { c.Admins = AdminsConfig{} },
		"no courses":      func(c *Config) { c.Courses = nil },
		"bad driver":      func(c *Config) { c.Storage.Driver = "mongo" },
		"postgres no db":  func(c *Config) { c.Storage.Driver = StoragePostgres },
		"negative cap":    func(c *Config) { c.Workflow.ReceiptAttempts = -1 },
		"unknown coupon":  func(c *Config) { c.Coupons = []catalog.Coupon{{Code: "X", Percent: 10, Courses: []string{"nope"}}} },
		"missing token":   func(c *Config) { c.Telegram.Token = "" },
		"negative notify": func(c *Config) { c.Workflow.AdminNotifyTimeoutMS = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := Normalize(&cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
telegram:
  token: from-file
admins:
  ids: [42]
courses:
  - id: online_cardio
    title: Cardio
    price: 599000
coupons:
  - code: welcome10
    percent: 10
    active: true
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("RECEIPT_ATTEMPTS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, env must win", cfg.Telegram.Token)
	}
	if cfg.Workflow.ReceiptAttempts != 5 {
		t.Fatalf("receipt attempts = %d", cfg.Workflow.ReceiptAttempts)
	}
	cat, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if _, ok := cat.Coupon("WELCOME10", "online_cardio"); !ok {
		t.Fatalf("coupon not loaded")
	}
}
