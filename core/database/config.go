package database

import "strings"

const (
	// DriverPostgres selects the lib/pq driver.
	DriverPostgres = "postgres"
	// DriverSQLite selects the mattn/go-sqlite3 driver.
	DriverSQLite = "sqlite3"
)

// Config holds database connection settings.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the SQLite database file.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir holds one subdirectory per driver; defaults to "migrations".
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// DriverName returns the normalized driver; "sqlite" is accepted as an alias.
func (c Config) DriverName() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "sqlite", DriverSQLite:
		return DriverSQLite
	default:
		return DriverPostgres
	}
}

// DSN builds the database/sql connection string for the configured driver.
func (c Config) DSN() string {
	if c.DriverName() == DriverSQLite {
		return c.Path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	return "user=" + c.User + " password=" + c.Password + " host=" + c.Host +
		" port=" + c.Port + " dbname=" + c.Name + " sslmode=" + c.SSLMode
}

// MigrateURL builds the golang-migrate database URL for the configured driver.
func (c Config) MigrateURL() string {
	if c.DriverName() == DriverSQLite {
		return "sqlite3://" + c.Path
	}
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port +
		"/" + c.Name + "?sslmode=" + c.SSLMode
}

func (c Config) poolSize() int {
	if c.DriverName() == DriverSQLite {
		return 1
	}
	if c.MaxConnections <= 0 {
		return 5
	}
	return c.MaxConnections
}
