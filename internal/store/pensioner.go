package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/metrics"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

const entityPensioner = "pensioner"

type PensionerStore struct {
	config  *Config
	repo    PensionerRepository
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewPensionerStore(config *Config, repo PensionerRepository, m *metrics.Metrics) *PensionerStore {
	return &PensionerStore{
		config:  config,
		repo:    repo,
		metrics: m,
		log:     slog.With("component", "pensioner-store"),
	}
}

// Create validates and persists a new pensioner. When BatchID is set the
// batch must exist at write time, otherwise the write is rejected with
// errors.ErrReferentialViolation and nothing is created.
func (s *PensionerStore) Create(ctx context.Context, p types.NewPensioner) (id int64, err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "create", err) }()

	if p.Status == "" {
		p.Status = types.PensionerPending
	}
	if _, err := types.ParsePensionerStatus(string(p.Status)); err != nil {
		s.log.Debug("rejected pensioner", "unique_id", p.UniqueID, "error", err)
		return 0, err
	}
	if p.Currency == "" {
		p.Currency = types.DefaultCurrency
	}

	required := []struct {
		name  string
		value *string
	}{
		{"unique_id", &p.UniqueID},
		{"first_name", &p.FirstName},
		{"last_name", &p.LastName},
		{"msisdn", &p.MSISDN},
	}
	for _, field := range required {
		*field.value = strings.TrimSpace(*field.value)
		if *field.value == "" {
			return 0, errors.MalformedInput(field.name + " is required")
		}
	}

	if p.Amount.IsNegative() {
		return 0, errors.MalformedInput("amount must not be negative")
	}
	if err := checkBatchRef(p.BatchID); err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	id, err = s.repo.CreatePensioner(ctx, p)
	if err != nil {
		return 0, err
	}

	s.log.Info("pensioner created", "id", id, "unique_id", p.UniqueID, "batch_id", p.BatchID)

	return id, nil
}

// Update changes only the supplied fields and reports false without an error
// when the pensioner does not exist or nothing was supplied.
func (s *PensionerStore) Update(ctx context.Context, id int64, update types.PensionerUpdate) (ok bool, err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "update", err) }()

	if update.Status != nil {
		if _, err := types.ParsePensionerStatus(string(*update.Status)); err != nil {
			return false, err
		}
	}
	if update.Amount != nil && update.Amount.IsNegative() {
		return false, errors.MalformedInput("amount must not be negative")
	}
	if update.BatchID != nil {
		if err := checkBatchRef(update.BatchID); err != nil {
			return false, err
		}
	}

	if update.IsEmpty() {
		return false, nil
	}

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	ok, err = s.repo.UpdatePensioner(ctx, id, update)
	if err != nil {
		return false, err
	}

	if ok {
		s.log.Info("pensioner updated", "id", id)
	}

	return ok, nil
}

func (s *PensionerStore) UpdateStatus(ctx context.Context, id int64, status types.PensionerStatus) (bool, error) {
	if _, err := types.ParsePensionerStatus(string(status)); err != nil {
		s.metrics.ObserveStore(entityPensioner, "update", err)
		return false, err
	}
	return s.Update(ctx, id, types.PensionerUpdate{Status: &status})
}

func (s *PensionerStore) GetByID(ctx context.Context, id int64) (p *types.Pensioner, err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "get", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	return s.repo.GetPensionerByID(ctx, id)
}

func (s *PensionerStore) GetByUniqueID(ctx context.Context, uniqueID string) (p *types.Pensioner, err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "get", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	return s.repo.GetPensionerByUniqueID(ctx, uniqueID)
}

// GetByBatchID lists the pensioners of a batch, oldest first. An unknown
// batch yields an empty list.
func (s *PensionerStore) GetByBatchID(ctx context.Context, batchID int64) (ps []types.Pensioner, err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "list", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	ps, err = s.repo.ListPensionersByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []types.Pensioner{}
	}

	return ps, nil
}

func (s *PensionerStore) List(ctx context.Context, limit, offset int) (ps []types.Pensioner, err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "list", err) }()

	limit, offset = page(limit, offset)

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	ps, err = s.repo.ListPensioners(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []types.Pensioner{}
	}

	return ps, nil
}

func (s *PensionerStore) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.metrics.ObserveStore(entityPensioner, "delete", err) }()

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.repo.DeletePensioner(ctx, id); err != nil {
		return err
	}

	s.log.Info("pensioner deleted", "id", id)

	return nil
}

// checkBatchRef rejects ids that can never reference a batch. Existence is
// checked by the repository in the same transaction as the write.
func checkBatchRef(batchID *int64) error {
	if batchID != nil && *batchID <= 0 {
		return errors.ReferentialViolation(fmt.Sprintf("batch %d does not exist", *batchID))
	}
	return nil
}
