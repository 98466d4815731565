package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/app"
	"github.com/Stellouuuuu/mojaloop-pension/internal/config"
	"github.com/Stellouuuuu/mojaloop-pension/internal/ingest"
	"github.com/Stellouuuuu/mojaloop-pension/internal/notifier"
	"github.com/Stellouuuuu/mojaloop-pension/internal/queue"

	"github.com/spf13/cobra"
)

type loader func() (*config.Config, error)

// dialer opens the publisher used for batch-ingested events. The returned
// function closes it.
type dialer func(cfg *config.Config) (notifier.Publisher, func(), error)

func dialQueue(cfg *config.Config) (notifier.Publisher, func(), error) {
	q := queue.New(&queue.Config{
		URL:            cfg.RabbitURL,
		ConnectTimeout: 5 * time.Second,
	})
	if err := q.Connect(); err != nil {
		return nil, nil, err
	}
	return q, q.Close, nil
}

func ingestCmd(load loader, dial dialer) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file]",
		Short: "Append a CSV payee list to the ingestion ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ledger, closeLedger, err := app.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeLedger()

			ingestConfig, err := app.IngestConfig(cfg)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			// Reach the broker before appending anything.
			var batchNotifier ingest.Notifier
			if cfg.RabbitURL != "" {
				publisher, closePublisher, err := dial(cfg)
				if err != nil {
					return err
				}
				defer closePublisher()

				batchNotifier = notifier.New(&notifier.Config{
					Queue:   queue.QueueName(cfg.NotifyQueue),
					Timeout: 5 * time.Second,
				}, publisher, nil)
			} else {
				slog.Warn("RABBIT_URL is not set, no batch-ingested event will be sent for this file")
			}

			result, err := ingest.New(ingestConfig, ledger, batchNotifier, nil).
				Ingest(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func ledgerCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the ingestion ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ingested batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ledger, closeLedger, err := app.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeLedger()

			units, err := ledger.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BATCH\tDATE\tFILE\tVALID\tREFUSED")
			for _, unit := range units {
				valid, refused := unit.Counts()
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					unit.BatchID, unit.Date.Format("2006-01-02 15:04:05"), unit.SourceFile, valid, refused)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [batch-id]",
		Short: "Print one ingested batch as stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ledger, closeLedger, err := app.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeLedger()

			unit, err := ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), unit)
		},
	})

	return cmd
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the batch and pensioner tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			// Opening the database applies the schema.
			_, closeDB, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date on %s\n", cfg.StorageBackend)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
