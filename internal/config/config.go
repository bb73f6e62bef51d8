// Package config loads service configuration from an optional YAML file and
// WORKLOG_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"worklog-platform/internal/models"
	"worklog-platform/pkg/database"
	"worklog-platform/pkg/logging"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Database  DatabaseConfig    `yaml:"database"`
	Storage   StorageConfig     `yaml:"storage"`
	Logging   LoggingConfig     `yaml:"logging"`
	Ingestion IngestionConfig   `yaml:"ingestion"`
	Rates     models.RateConfig `yaml:"rates"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxUploadMB  int           `yaml:"max_upload_mb"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DSN returns the lib/pq keyword connection string
func (d DatabaseConfig) DSN() string {
	return d.Connection().DSN()
}

// Connection returns the pool settings for database.NewPostgresDB
func (d DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// StorageConfig selects the repository implementation
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IngestionConfig holds settings for the directory ingester
type IngestionConfig struct {
	Directory  string `yaml:"directory"`
	LedgerFile string `yaml:"ledger_file"`
	BatchSize  int    `yaml:"batch_size"`
}

// Default returns the configuration used when no file or environment overrides are present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxUploadMB:  32,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "worklog",
			Password:        "worklog",
			Database:        "worklog",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Storage: StorageConfig{Driver: DriverPostgres},
		Logging: LoggingConfig{Level: "info"},
		Ingestion: IngestionConfig{
			Directory: "./data",
			BatchSize: 500,
		},
		Rates: models.RateConfig{UnitPrices: map[string]float64{}},
	}
}

// LoadConfig reads the file named by WORKLOG_CONFIG, if any, then applies environment overrides
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("WORKLOG_CONFIG"), os.Getenv)
}

// Load builds a configuration from defaults, the YAML file at path (skipped when empty)
// and the variables returned by getenv
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	if cfg.Rates.UnitPrices == nil {
		cfg.Rates.UnitPrices = map[string]float64{}
	}

	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"WORKLOG_SERVER_HOST":    &cfg.Server.Host,
		"WORKLOG_DB_HOST":        &cfg.Database.Host,
		"WORKLOG_DB_USER":        &cfg.Database.User,
		"WORKLOG_DB_PASSWORD":    &cfg.Database.Password,
		"WORKLOG_DB_NAME":        &cfg.Database.Database,
		"WORKLOG_DB_SSLMODE":     &cfg.Database.SSLMode,
		"WORKLOG_STORAGE_DRIVER": &cfg.Storage.Driver,
		"WORKLOG_LOG_LEVEL":      &cfg.Logging.Level,
		"WORKLOG_INGEST_DIR":     &cfg.Ingestion.Directory,
		"WORKLOG_LEDGER_FILE":    &cfg.Ingestion.LedgerFile,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKLOG_SERVER_PORT":       &cfg.Server.Port,
		"WORKLOG_DB_PORT":           &cfg.Database.Port,
		"WORKLOG_DB_MAX_OPEN_CONNS": &cfg.Database.MaxOpenConns,
		"WORKLOG_DB_MAX_IDLE_CONNS": &cfg.Database.MaxIdleConns,
		"WORKLOG_INGEST_BATCH_SIZE": &cfg.Ingestion.BatchSize,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	floats := map[string]*float64{
		"WORKLOG_HOURLY_WAGE":  &cfg.Rates.HourlyWage,
		"WORKLOG_MACHINE_RATE": &cfg.Rates.MachineRate,
	}
	for key, dst := range floats {
		v := getenv(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = f
	}

	return nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server max_upload_mb must be positive: %d", c.Server.MaxUploadMB)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database host and name are required for the postgres driver")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database port out of range: %d", c.Database.Port)
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database max_open_conns must be positive: %d", c.Database.MaxOpenConns)
		}
		if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("database max_idle_conns must be between 0 and max_open_conns: %d", c.Database.MaxIdleConns)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion batch_size must be positive: %d", c.Ingestion.BatchSize)
	}

	if err := c.Rates.Validate(); err != nil {
		return fmt.Errorf("invalid rates: %w", err)
	}

	return nil
}

// LogLevel returns the parsed logging level, defaulting to info
func (c *Config) LogLevel() logging.LogLevel {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.InfoLevel
	}
	return level
}

// LoadRates reads a standalone YAML rates file (hourly_wage, machine_rate, unit_prices)
func LoadRates(path string) (models.RateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RateConfig{}, fmt.Errorf("failed to read rates file: %w", err)
	}

	var rates models.RateConfig
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return models.RateConfig{}, fmt.Errorf("failed to parse rates file %s: %w", path, err)
	}
	if rates.UnitPrices == nil {
		rates.UnitPrices = map[string]float64{}
	}
	if err := rates.Validate(); err != nil {
		return models.RateConfig{}, err
	}
	return rates, nil
}
