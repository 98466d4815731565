// Package config gathers the settings of the server and the CLI into one
// object that is handed to every constructor.
package config

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/env"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	LedgerFile  = "file"
	LedgerRedis = "redis"
)

type Config struct {
	LogLevel string

	ListenAddr   string
	ListenPort   int
	ProbesPort   int
	MetricsPort  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	StorageBackend string
	PostgresURL    string
	SQLitePath     string
	DBTimeout      time.Duration

	LedgerBackend   string
	LedgerPath      string
	RedisURL        string
	LedgerKeyPrefix string
	LedgerTimezone  string

	RabbitURL   string
	NotifyQueue string

	DefaultInitiator string
	CSVDelimiter     rune
	MaxUploadBytes   int64

	HealthCheckInterval time.Duration
	PodName             string
}

// Load reads the optional .env files (".env" when none is given) and then
// the environment. Variables already set in the environment win over the
// files.
func Load(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	return &Config{
		LogLevel: env.GetString("LOG_LEVEL", "INFO"),

		ListenAddr:   env.GetString("LISTEN_ADDR", ""),
		ListenPort:   env.GetInt("LISTEN_PORT", 8090),
		ProbesPort:   env.GetInt("PROBES_PORT", 8081),
		MetricsPort:  env.GetInt("METRICS_PORT", 9091),
		ReadTimeout:  env.GetDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  env.GetDuration("IDLE_TIMEOUT", 60*time.Second),

		StorageBackend: env.GetString("STORAGE_BACKEND", StoragePostgres),
		PostgresURL: env.GetString("POSTGRES_URL",
			"postgres://postgres:dev@db:5432/postgres?connect_timeout=1"),
		SQLitePath: env.GetString("SQLITE_PATH", "pension.db"),
		DBTimeout:  env.GetDuration("DB_TIMEOUT", 3*time.Second),

		LedgerBackend:   env.GetString("LEDGER_BACKEND", LedgerFile),
		LedgerPath:      env.GetString("LEDGER_PATH", "data.json"),
		RedisURL:        env.GetString("REDIS_URL", ""),
		LedgerKeyPrefix: env.GetString("LEDGER_KEY_PREFIX", "pension:ledger"),
		LedgerTimezone:  env.GetString("LEDGER_TIMEZONE", "Local"),

		RabbitURL:   env.GetString("RABBIT_URL", ""),
		NotifyQueue: env.GetString("NOTIFY_QUEUE", "batch-ingested"),

		DefaultInitiator: env.GetString("DEFAULT_INITIATOR", "admin"),
		CSVDelimiter:     env.GetRune("CSV_DELIMITER", ','),
		MaxUploadBytes:   env.GetInt64("MAX_UPLOAD_BYTES", 10<<20),

		HealthCheckInterval: env.GetDuration("HEALTH_CHECK_INTERVAL", 10*time.Second),
		PodName:             env.GetString("POD_NAME", ""),
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StoragePostgres:
		if c.PostgresURL == "" {
			errs = append(errs, fmt.Errorf("POSTGRES_URL is required for the postgres backend"))
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("SQLITE_PATH is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.LedgerBackend {
	case LedgerFile:
		if c.LedgerPath == "" {
			errs = append(errs, fmt.Errorf("LEDGER_PATH is required for the file ledger"))
		}
	case LedgerRedis:
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL is required for the redis ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.CSVDelimiter {
	case '"', '\r', '\n':
		errs = append(errs, fmt.Errorf("CSV_DELIMITER %q is not usable", c.CSVDelimiter))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive"))
	}

	return stderrors.Join(errs...)
}

// Location is the time zone whose calendar date prefixes ingestion batch ids.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LedgerTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", c.LedgerTimezone, err)
	}
	return loc, nil
}
