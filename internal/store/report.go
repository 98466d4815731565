package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/shopspring/decimal"
)

// Reporter joins batches with their pensioners.
type Reporter struct {
	config     *Config
	repo       ReportRepository
	batches    *BatchStore
	pensioners *PensionerStore
	log        *slog.Logger
}

func NewReporter(config *Config, repo ReportRepository, batches *BatchStore,
	pensioners *PensionerStore) *Reporter {
	return &Reporter{
		config:     config,
		repo:       repo,
		batches:    batches,
		pensioners: pensioners,
		log:        slog.With("component", "reporter"),
	}
}

// BatchesWithPensioners returns every attached pensioner together with its
// batch. Unattached pensioners and empty batches do not appear.
func (r *Reporter) BatchesWithPensioners(ctx context.Context) ([]types.BatchPensioner, error) {
	ctx, cancel := withTimeout(ctx, r.config.Timeout)
	defer cancel()

	rows, err := r.repo.ListBatchPensioners(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []types.BatchPensioner{}
	}

	return rows, nil
}

// Summary counts the pensioners of a batch per status. The success rate is
// the share of pensioners in success, in percent with two decimals.
func (r *Reporter) Summary(ctx context.Context, batchID int64) (*types.BatchSummary, error) {
	batch, err := r.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	pensioners, err := r.pensioners.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	summary := &types.BatchSummary{
		BatchID:     batch.ID,
		BatchCode:   batch.BatchCode,
		Pensioners:  int64(len(pensioners)),
		ByStatus:    make(map[types.PensionerStatus]int64, len(types.PensionerStatuses)),
		TotalAmount: decimal.Zero,
	}

	for _, status := range types.PensionerStatuses {
		summary.ByStatus[status] = 0
	}

	for _, p := range pensioners {
		summary.ByStatus[p.Status]++
		summary.TotalAmount = summary.TotalAmount.Add(p.Amount)
	}

	summary.SuccessRate = successRate(summary.ByStatus[types.PensionerSuccess], summary.Pensioners)

	return summary, nil
}

// RefreshSuccessRate recomputes the success rate of a batch from its
// pensioners and stores it.
func (r *Reporter) RefreshSuccessRate(ctx context.Context, batchID int64) (float64, error) {
	summary, err := r.Summary(ctx, batchID)
	if err != nil {
		return 0, err
	}

	ok, err := r.batches.UpdateSuccessRate(ctx, batchID, summary.SuccessRate)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.NotFound(fmt.Sprintf("batch %d not found", batchID))
	}

	r.log.Info("success rate refreshed", "batch_id", batchID, "rate", summary.SuccessRate)

	return summary.SuccessRate, nil
}

func successRate(success, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(success)/float64(total)*100*100) / 100
}
