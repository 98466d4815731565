package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/api"
	"github.com/Stellouuuuu/mojaloop-pension/internal/app"
	"github.com/Stellouuuuu/mojaloop-pension/internal/config"
	"github.com/Stellouuuuu/mojaloop-pension/internal/health"
	"github.com/Stellouuuuu/mojaloop-pension/internal/ingest"
	"github.com/Stellouuuuu/mojaloop-pension/internal/log"
	"github.com/Stellouuuuu/mojaloop-pension/internal/metrics"
	"github.com/Stellouuuuu/mojaloop-pension/internal/notifier"
	"github.com/Stellouuuuu/mojaloop-pension/internal/queue"
	"github.com/Stellouuuuu/mojaloop-pension/internal/store"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// create the context and register signals that could cause its cancellation
	// and graceful shutdown
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("pension service exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	instanceID := getInstanceID(cfg)

	db, closeDB, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	ledger, closeLedger, err := app.OpenLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	ingestConfig, err := app.IngestConfig(cfg)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	components := map[health.Component]health.Pinger{
		health.ComponentDB:     db,
		health.ComponentLedger: ledger,
	}

	errGroup, ctx := errgroup.WithContext(ctx)

	var batchNotifier ingest.Notifier
	if cfg.RabbitURL != "" {
		q := queue.New(&queue.Config{
			URL:               cfg.RabbitURL,
			ReconnectInterval: 5 * time.Second,
			ConnectTimeout:    5 * time.Second,
		})
		components[health.ComponentQueue] = q

		errGroup.Go(func() error {
			if err := q.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})

		batchNotifier = notifier.New(&notifier.Config{
			Queue:   queue.QueueName(cfg.NotifyQueue),
			Timeout: 5 * time.Second,
		}, q, m)
	} else {
		slog.Info("RABBIT_URL is not set, batch-ingested events are disabled")
	}

	storeConfig := app.StoreConfig(cfg)
	batches := store.NewBatchStore(storeConfig, db, m)
	pensioners := store.NewPensionerStore(storeConfig, db, m)
	reporter := store.NewReporter(storeConfig, db, batches, pensioners)

	pipeline := ingest.New(ingestConfig, ledger, batchNotifier, m)

	checker := health.NewChecker(&health.Config{
		CheckInterval: cfg.HealthCheckInterval,
		CheckTimeout:  2 * time.Second,
		ID:            instanceID,
	}, components)

	server := api.NewServer(&api.Config{
		ListenAddr:     cfg.ListenAddr,
		ListenPort:     cfg.ListenPort,
		MetricsPort:    cfg.MetricsPort,
		ProbesPort:     cfg.ProbesPort,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ID:             instanceID,
	}, batches, pensioners, reporter, pipeline, checker)

	errGroup.Go(func() error {
		checker.Run(ctx)
		return nil
	})

	errGroup.Go(func() error {
		return server.Start(ctx)
	})

	return errGroup.Wait()
}

func getInstanceID(cfg *config.Config) string {
	if cfg.PodName != "" {
		return cfg.PodName
	}

	return uuid.NewString()
}
