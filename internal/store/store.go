// Package store owns the batch and pensioner records: status validation,
// defaults, referential policy and reporting on top of a storage backend.
package store

import (
	"context"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// BatchRepository persists batches. Lookups of a missing record return an
// error matching errors.ErrNotFound; DeleteBatch does the same when no row
// was removed.
type BatchRepository interface {
	CreateBatch(ctx context.Context, batch types.NewBatch) (int64, error)
	UpdateBatch(ctx context.Context, id int64, update types.BatchUpdate) (bool, error)
	GetBatchByID(ctx context.Context, id int64) (*types.Batch, error)
	GetBatchByCode(ctx context.Context, code string) (*types.Batch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]types.Batch, error)
	DeleteBatch(ctx context.Context, id int64) error
}

// PensionerRepository persists pensioners. Writes that set batch_id check the
// batch inside the same transaction and fail with
// errors.ErrReferentialViolation when it does not exist.
type PensionerRepository interface {
	CreatePensioner(ctx context.Context, pensioner types.NewPensioner) (int64, error)
	UpdatePensioner(ctx context.Context, id int64, update types.PensionerUpdate) (bool, error)
	GetPensionerByID(ctx context.Context, id int64) (*types.Pensioner, error)
	GetPensionerByUniqueID(ctx context.Context, uniqueID string) (*types.Pensioner, error)
	ListPensionersByBatch(ctx context.Context, batchID int64) ([]types.Pensioner, error)
	ListPensioners(ctx context.Context, limit, offset int) ([]types.Pensioner, error)
	DeletePensioner(ctx context.Context, id int64) error
}

type ReportRepository interface {
	ListBatchPensioners(ctx context.Context) ([]types.BatchPensioner, error)
}

// Repository is implemented by every relational backend.
type Repository interface {
	BatchRepository
	PensionerRepository
	ReportRepository
}

type Config struct {
	// Initiator is recorded as initiated_by when a batch is created without one.
	Initiator string
	// Timeout bounds every repository call; zero disables it.
	Timeout time.Duration
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
