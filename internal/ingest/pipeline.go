// Package ingest turns uploaded CSV payee lists into units of the ingestion
// ledger. The ledger is separate from the batch and pensioner tables; the
// reconciliation job learns about new units from batch-ingested events.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/helpers"
	"github.com/Stellouuuuu/mojaloop-pension/internal/metrics"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

// Notifier is told about every unit persisted in the ledger.
type Notifier interface {
	BatchIngested(ctx context.Context, unit types.IngestedBatch) error
}

type Config struct {
	// Delimiter separates CSV cells; zero means a comma.
	Delimiter rune
	// Location is the time zone whose calendar date prefixes batch ids;
	// nil means the local zone.
	Location *time.Location
}

type Result struct {
	BatchID           string `json:"batchId"`
	ParticipantsAdded int    `json:"participants_added"`
	Valid             int    `json:"valid"`
	Refused           int    `json:"refused"`
	TotalBatches      int    `json:"total_batches"`
	Fingerprint       string `json:"fingerprint"`
}

type Pipeline struct {
	config   *Config
	ledger   Ledger
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	log      *slog.Logger
}

// New builds a pipeline. notifier and m may be nil.
func New(config *Config, ledger Ledger, notifier Notifier, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		config:   config,
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
		log:      slog.With("component", "ingest"),
	}
}

// Ingest parses the upload, tags every row and appends the result to the
// ledger under a fresh batch id. Nothing is written when the upload is
// missing or has no data rows.
func (p *Pipeline) Ingest(ctx context.Context, filename string, file io.Reader) (result *Result, err error) {
	valid, refused, total := 0, 0, 0
	defer func() {
		p.metrics.ObserveIngestion(err, valid, refused, total)
	}()

	if file == nil {
		return nil, errors.MalformedInput("no file supplied")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, errors.MalformedInput("empty file name")
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New(errors.CodeMalformedInput, "couldn't read upload", err)
	}

	participants, err := ParseCSV(content, p.delimiter())
	if err != nil {
		p.log.Debug("upload rejected", "file", filename, "error", err)
		return nil, err
	}
	if len(participants) == 0 {
		p.log.Debug("upload rejected", "file", filename, "reason", "no rows")
		return nil, errors.MalformedInput("csv file contains no rows")
	}

	unit := types.IngestedBatch{
		Date:         types.LedgerTime{Time: p.now().In(p.location())},
		Participants: participants,
		SourceFile:   filepath.Base(filename),
		Fingerprint:  helpers.Fingerprint(content),
	}

	unit, total, err = p.ledger.Append(ctx, unit)
	if err != nil {
		return nil, err
	}

	valid, refused = unit.Counts()

	p.log.Info("csv ingested",
		"batch_id", unit.BatchID,
		"file", unit.SourceFile,
		"valid", valid,
		"refused", refused,
		"total_batches", total,
	)

	if p.notifier != nil {
		if err := p.notifier.BatchIngested(ctx, unit); err != nil {
			p.log.Warn("couldn't notify about ingested batch", "batch_id", unit.BatchID, "error", err)
		}
	}

	return &Result{
		BatchID:           unit.BatchID,
		ParticipantsAdded: len(participants),
		Valid:             valid,
		Refused:           refused,
		TotalBatches:      total,
		Fingerprint:       unit.Fingerprint,
	}, nil
}

func (p *Pipeline) List(ctx context.Context) ([]types.IngestedBatch, error) {
	return p.ledger.List(ctx)
}

func (p *Pipeline) Get(ctx context.Context, batchID string) (*types.IngestedBatch, error) {
	return p.ledger.Get(ctx, batchID)
}

func (p *Pipeline) delimiter() rune {
	if p.config == nil || p.config.Delimiter == 0 {
		return ','
	}
	return p.config.Delimiter
}

func (p *Pipeline) location() *time.Location {
	if p.config == nil || p.config.Location == nil {
		return time.Local
	}
	return p.config.Location
}
