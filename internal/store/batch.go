package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/metrics"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

const entityBatch = "batch"

type BatchStore struct {
	config  *Config
	repo    BatchRepository
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewBatchStore(config *Config, repo BatchRepository, m *metrics.Metrics) *BatchStore {
	return &BatchStore{
		config:  config,
		repo:    repo,
		metrics: m,
		log:     slog.With("component", "batch-store"),
	}
}

// Create validates and persists a new batch and returns its id. Status
// defaults to pending and the initiator to the configured one.
func (s *BatchStore) Create(ctx context.Context, batch types.NewBatch) (id int64, err error) {
	defer func() { s.metrics.ObserveStore(entityBatch, "create", err) }()

	if batch.Status == "" {
		batch.Status = types.BatchPending
	}
	if _, err := types.ParseBatchStatus(string(batch.Status)); err != nil {
		s.log.Debug("rejected batch", "code", batch.BatchCode, "error", err)
		return 0, err
	}

	batch.BatchCode = strings.TrimSpace(batch.BatchCode)
	if batch.BatchCode == "" {
		return 0, errors.MalformedInput("batch_code is required")
	}
	if batch.TotalPayments < 0 {
		return 0, errors.MalformedInput("total_payments must not be negative")
	}
	if err := validateRate(batch.SuccessRate); err != nil {
		return 0, err
	}
	if batch.InitiatedBy == "" {
		batch.InitiatedBy = s.initiator()
	}

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	id, err = s.repo.CreateBatch(ctx, batch)
	if err != nil {
		return 0, err
	}

	s.log.Info("batch created", "id", id, "code", batch.BatchCode)

	return id, nil
}

// Update changes only the supplied fields. It reports false without an error
// when the batch does not exist or nothing was supplied.
func (s *BatchStore) Update(ctx context.Context, id int64, update types.BatchUpdate) (ok bool, err error) {
	defer func() { s.metrics.ObserveStore(entityBatch, "update", err) }()

	if update.Status != nil {
		if _, err := types.ParseBatchStatus(string(*update.Status)); err != nil {
			return false, err
		}
	}
	if update.BatchCode != nil {
		code := strings.TrimSpace(*update.BatchCode)
		if code == "" {
			return false, errors.MalformedInput("batch_code must not be empty")
		}
		update.BatchCode = &code
	}
	if update.TotalPayments != nil && *update.TotalPayments < 0 {
		return false, errors.MalformedInput("total_payments must not be negative")
	}
	if update.SuccessRate != nil {
		if err := validateRate(*update.SuccessRate); err != nil {
			return false, err
		}
	}

	if update.IsEmpty() {
		return false, nil
	}

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	ok, err = s.repo.UpdateBatch(ctx, id, update)
	if err != nil {
		return false, err
	}

	if ok {
		s.log.Info("batch updated", "id", id)
	}

	return ok, nil
}

func (s *BatchStore) UpdateStatus(ctx context.Context, id int64, status types.BatchStatus) (bool, error) {
	if _, err := types.ParseBatchStatus(string(status)); err != nil {
		s.metrics.ObserveStore(entityBatch, "update", err)
		return false, err
	}
	return s.Update(ctx, id, types.BatchUpdate{Status: &status})
}

func (s *BatchStore) UpdateSuccessRate(ctx context.Context, id int64, rate float64) (bool, error) {
	if err := validateRate(rate); err != nil {
		s.metrics.ObserveStore(entityBatch, "update", err)
		return false, err
	}
	return s.Update(ctx, id, types.BatchUpdate{SuccessRate: &rate})
}

func (s *BatchStore) GetByID(ctx context.Context, id int64) (batch *types.Batch, err error) {
	defer func() { s.metrics.ObserveStore(entityBatch, "get", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	return s.repo.GetBatchByID(ctx, id)
}

func (s *BatchStore) GetByCode(ctx context.Context, code string) (batch *types.Batch, err error) {
	defer func() { s.metrics.ObserveStore(entityBatch, "get", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	return s.repo.GetBatchByCode(ctx, code)
}

// List returns a page of batches, most recent first. An empty page is not an
// error.
func (s *BatchStore) List(ctx context.Context, limit, offset int) (batches []types.Batch, err error) {
	defer func() { s.metrics.ObserveStore(entityBatch, "list", err) }()

	limit, offset = page(limit, offset)

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	batches, err = s.repo.ListBatches(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []types.Batch{}
	}

	return batches, nil
}

// Delete removes the batch. Its pensioners stay and are detached.
func (s *BatchStore) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.metrics.ObserveStore(entityBatch, "delete", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.repo.DeleteBatch(ctx, id); err != nil {
		return err
	}

	s.log.Info("batch deleted", "id", id)

	return nil
}

func (s *BatchStore) initiator() string {
	if s.config.Initiator != "" {
		return s.config.Initiator
	}
	return types.DefaultInitiator
}

func validateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate > 100 {
		return errors.MalformedInput(fmt.Sprintf("success_rate %v must be within [0, 100]", rate))
	}
	return nil
}
