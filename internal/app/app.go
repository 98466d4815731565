// Package app opens the backends selected by the configuration. It is shared
// by the server and the pensionctl command.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Stellouuuuu/mojaloop-pension/internal/config"
	"github.com/Stellouuuuu/mojaloop-pension/internal/ingest"
	"github.com/Stellouuuuu/mojaloop-pension/internal/repository/postgres"
	redisledger "github.com/Stellouuuuu/mojaloop-pension/internal/repository/redis"
	"github.com/Stellouuuuu/mojaloop-pension/internal/repository/sqlite"
	"github.com/Stellouuuuu/mojaloop-pension/internal/store"

	"github.com/redis/go-redis/v9"
)

// Database is a relational backend together with its lifecycle.
type Database interface {
	store.Repository
	Migrate(ctx context.Context) error
	IsUpAndRunning(ctx context.Context) error
}

// LedgerBackend is an ingestion ledger together with its health probe.
type LedgerBackend interface {
	ingest.Ledger
	IsUpAndRunning(ctx context.Context) error
}

// OpenDatabase connects to the configured backend and applies the schema.
// The returned function releases the connection.
func OpenDatabase(ctx context.Context, cfg *config.Config) (Database, func(), error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		slog.Info("Connecting to Postgres...")

		pg, err := postgres.Connect(ctx, cfg.PostgresURL, cfg.DBTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("check postgres connection: %w", err)
		}

		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}

		return pg, pg.Close, nil

	case config.StorageSQLite:
		slog.Info("Opening SQLite database", "path", cfg.SQLitePath)

		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}

		return db, func() {
			if err := db.Close(); err != nil {
				slog.Error("couldn't close sqlite", "error", err)
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

type fileLedger struct {
	*ingest.FileLedger
}

func (fileLedger) IsUpAndRunning(context.Context) error {
	return nil
}

// OpenLedger returns the configured ingestion ledger. The returned function
// releases it.
func OpenLedger(ctx context.Context, cfg *config.Config) (LedgerBackend, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerFile:
		return fileLedger{ingest.NewFileLedger(cfg.LedgerPath)}, func() {}, nil

	case config.LedgerRedis:
		slog.Info("Connecting to Redis...")

		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}

		client := redis.NewClient(opts)
		ledger := redisledger.NewLedger(client, cfg.LedgerKeyPrefix)

		if err := ledger.IsUpAndRunning(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("check redis connection: %w", err)
		}

		return ledger, func() {
			if err := client.Close(); err != nil {
				slog.Error("couldn't close redis client", "error", err)
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
}

// StoreConfig derives the store settings from the configuration.
func StoreConfig(cfg *config.Config) *store.Config {
	return &store.Config{
		Initiator: cfg.DefaultInitiator,
		Timeout:   cfg.DBTimeout,
	}
}

// IngestConfig derives the pipeline settings from a validated configuration.
func IngestConfig(cfg *config.Config) (*ingest.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &ingest.Config{
		Delimiter: cfg.CSVDelimiter,
		Location:  loc,
	}, nil
}
