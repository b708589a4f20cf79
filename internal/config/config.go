package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. ATTRPOOL_LOG_LEVEL.
const EnvPrefix = "ATTRPOOL_"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Server holds all configuration for the attribute daemon.
type Server struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// Simulation
	TickInterval        time.Duration `yaml:"tick_interval"        env:"TICK_INTERVAL"` // fixed step
	ServerAuthoritative bool          `yaml:"server_authoritative" env:"SERVER_AUTHORITATIVE"`
	Authority           bool          `yaml:"authority"            env:"AUTHORITY"` // this process owns expiration

	// Seed data
	TablePath   string `yaml:"table_path"   env:"TABLE_PATH"`
	EffectsPath string `yaml:"effects_path" env:"EFFECTS_PATH"` // optional

	// Effects applied to containers that start without a saved snapshot.
	InitialEffects []string `yaml:"initial_effects" env:"INITIAL_EFFECTS" envSeparator:","`

	// Persistence
	AutosaveInterval time.Duration `yaml:"autosave_interval" env:"AUTOSAVE_INTERVAL"`
	SnapshotKeep     int           `yaml:"snapshot_keep"     env:"SNAPSHOT_KEEP"` // per owner, 0 keeps all
	Storage          StorageConfig `yaml:"storage"           envPrefix:"STORAGE_"`
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	Driver     string         `yaml:"driver"      env:"DRIVER"`
	SQLitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Database   DatabaseConfig `yaml:"database"    envPrefix:"DB_"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"     env:"HOST"`
	Port     int    `yaml:"port"     env:"PORT"`
	User     string `yaml:"user"     env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname"   env:"NAME"`
	SSLMode  string `yaml:"sslmode"  env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		LogLevel:            "info",
		TickInterval:        50 * time.Millisecond,
		ServerAuthoritative: false,
		Authority:           true,
		TablePath:           "data/attributes.csv",
		AutosaveInterval:    30 * time.Second,
		SnapshotKeep:        5,
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "attrpool.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "attrpool",
				Password: "attrpool",
				DBName:   "attrpool",
				SSLMode:  "disable",
			},
		},
	}
}

// LoadServer loads config from a YAML file and applies ATTRPOOL_* environment
// overrides. If the file doesn't exist, overrides are applied to defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (s Server) Validate() error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", s.TickInterval)
	}
	if s.AutosaveInterval < 0 {
		return fmt.Errorf("autosave_interval must not be negative, got %s", s.AutosaveInterval)
	}
	if len(s.InitialEffects) > 0 && s.EffectsPath == "" {
		return fmt.Errorf("initial_effects requires effects_path")
	}
	if s.SnapshotKeep < 0 {
		return fmt.Errorf("snapshot_keep must not be negative, got %d", s.SnapshotKeep)
	}
	switch s.Storage.Driver {
	case DriverPostgres, DriverNone:
	case DriverSQLite:
		if s.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", s.Storage.Driver)
	}
	return nil
}
