// Package config loads the coachbot configuration: the shared bot core
// settings plus storage, admins, the course catalog and funnel limits.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/coachbot/core/config"
	coredatabase "github.com/m3rciful/coachbot/core/database"
	"github.com/m3rciful/coachbot/internal/catalog"
	"github.com/m3rciful/coachbot/internal/payment"
)

// Storage drivers.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// DefaultAdminNotifyTimeoutMS bounds each admin notification.
const DefaultAdminNotifyTimeoutMS = 5000

// StorageConfig selects where documents are kept.
type StorageConfig struct {
	Driver  string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	DataDir string `yaml:"data_dir" envconfig:"STORAGE_DATA_DIR"`
	// SQLitePath defaults to <data_dir>/coachbot.db.
	SQLitePath string `yaml:"sqlite_path" envconfig:"STORAGE_SQLITE_PATH"`
}

// AdminsConfig lists the Telegram ids allowed to resolve payments.
type AdminsConfig struct {
	IDs        []int64 `yaml:"ids" envconfig:"ADMIN_IDS"`
	SuperAdmin int64   `yaml:"super_admin" envconfig:"SUPER_ADMIN_ID"`
}

// PaymentConfig is the card shown to users before they send a receipt.
type PaymentConfig struct {
	CardNumber string `yaml:"card_number" envconfig:"PAYMENT_CARD_NUMBER"`
	CardHolder string `yaml:"card_holder" envconfig:"PAYMENT_CARD_HOLDER"`
}

// WorkflowConfig tunes the funnel.
type WorkflowConfig struct {
	// ReceiptAttempts is the receipt cap per user and course before admin grants.
	ReceiptAttempts      int    `yaml:"receipt_attempts" envconfig:"RECEIPT_ATTEMPTS"`
	AdminNotifyTimeoutMS int    `yaml:"admin_notify_timeout_ms" envconfig:"ADMIN_NOTIFY_TIMEOUT_MS"`
	QuestionsFile        string `yaml:"questions_file" envconfig:"QUESTIONS_FILE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Admins   AdminsConfig        `yaml:"admins"`
	Payment  PaymentConfig       `yaml:"payment"`
	Workflow WorkflowConfig      `yaml:"workflow"`

	Courses []catalog.Course `yaml:"courses"`
	Coupons []catalog.Coupon `yaml:"coupons"`
}

// CoreConfig exposes the shared bot settings to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, applies .env and environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := normalizeStorage(cfg); err != nil {
		return err
	}
	if err := normalizeAdmins(&cfg.Admins); err != nil {
		return err
	}

	w := &cfg.Workflow
	if w.ReceiptAttempts < 0 {
		return fmt.Errorf("workflow.receipt_attempts must be >= 0")
	}
	if w.ReceiptAttempts == 0 {
		w.ReceiptAttempts = payment.DefaultReceiptAttempts
	}
	if w.AdminNotifyTimeoutMS < 0 {
		return fmt.Errorf("workflow.admin_notify_timeout_ms must be >= 0")
	}
	if w.AdminNotifyTimeoutMS == 0 {
		w.AdminNotifyTimeoutMS = DefaultAdminNotifyTimeoutMS
	}
	w.QuestionsFile = strings.TrimSpace(w.QuestionsFile)

	if len(cfg.Courses) == 0 {
		return fmt.Errorf("courses: at least one course is required")
	}
	if _, err := cfg.Catalog(); err != nil {
		return err
	}
	return nil
}

func normalizeStorage(cfg *Config) error {
	s := &cfg.Storage
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if s.Driver == "" {
		s.Driver = StorageFile
	}
	if strings.TrimSpace(s.DataDir) == "" {
		s.DataDir = "data"
	}
	switch s.Driver {
	case StorageFile:
	case StorageSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			s.SQLitePath = filepath.Join(s.DataDir, "coachbot.db")
		}
		cfg.Database.Driver = coredatabase.DriverSQLite
		cfg.Database.Path = s.SQLitePath
	case StoragePostgres:
		cfg.Database.Driver = coredatabase.DriverPostgres
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when storage.driver is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres, sqlite", s.Driver)
	}
	return nil
}

func normalizeAdmins(a *AdminsConfig) error {
	ids := make([]int64, 0, len(a.IDs)+1)
	for _, id := range a.IDs {
		if id <= 0 {
			return fmt.Errorf("admins.ids: invalid id %d", id)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if a.SuperAdmin < 0 {
		return fmt.Errorf("admins.super_admin: invalid id %d", a.SuperAdmin)
	}
	if a.SuperAdmin > 0 && !slices.Contains(ids, a.SuperAdmin) {
		ids = append([]int64{a.SuperAdmin}, ids...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("admins.ids must list at least one admin")
	}
	if a.SuperAdmin == 0 {
		a.SuperAdmin = ids[0]
	}
	a.IDs = ids
	return nil
}

// UsesSQL reports whether documents live in a SQL database.
func (c *Config) UsesSQL() bool {
	return c.Storage.Driver == StoragePostgres || c.Storage.Driver == StorageSQLite
}

// Catalog builds the course catalog from the courses and coupons sections.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	cat, err := catalog.New(c.Courses, c.Coupons)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cat, nil
}

// ReceiptCap returns the receipt cap for the ledger.
func (c *Config) ReceiptCap() payment.Cap {
	return payment.Cap{Base: c.Workflow.ReceiptAttempts}
}

// AdminNotifyTimeout returns the per-admin send bound.
func (c *Config) AdminNotifyTimeout() time.Duration {
	return time.Duration(c.Workflow.AdminNotifyTimeoutMS) * time.Millisecond
}
