package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

// fakeRepository is an in-memory Repository. Every write advances the clock
// by one millisecond so timestamps are strictly ordered.
type fakeRepository struct {
	mu         sync.Mutex
	now        time.Time
	nextID     int64
	batches    map[int64]types.Batch
	pensioners map[int64]types.Pensioner
	writes     int
	failWith   error
	// beforeUpdateBatch runs ahead of every UpdateBatch, outside the lock.
	beforeUpdateBatch func()
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		now:        time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		batches:    make(map[int64]types.Batch),
		pensioners: make(map[int64]types.Pensioner),
	}
}

func (f *fakeRepository) tick() time.Time {
	f.now = f.now.Add(time.Millisecond)
	return f.now
}

func (f *fakeRepository) CreateBatch(_ context.Context, b types.NewBatch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return 0, f.failWith
	}

	for _, existing := range f.batches {
		if existing.BatchCode == b.BatchCode {
			return 0, errors.StorageFailure("couldn't create batch", fmt.Errorf("duplicate batch_code %q", b.BatchCode))
		}
	}

	f.nextID++
	f.writes++
	now := f.tick()
	f.batches[f.nextID] = types.Batch{
		ID:            f.nextID,
		BatchCode:     b.BatchCode,
		TotalAmount:   b.TotalAmount,
		TotalPayments: b.TotalPayments,
		SuccessRate:   b.SuccessRate,
		Status:        b.Status,
		InitiatedBy:   b.InitiatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return f.nextID, nil
}

func (f *fakeRepository) UpdateBatch(_ context.Context, id int64, u types.BatchUpdate) (bool, error) {
	if f.beforeUpdateBatch != nil {
		f.beforeUpdateBatch()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.batches[id]
	if !ok {
		return false, nil
	}

	if u.BatchCode != nil {
		b.BatchCode = *u.BatchCode
	}
	if u.TotalAmount != nil {
		b.TotalAmount = *u.TotalAmount
	}
	if u.TotalPayments != nil {
		b.TotalPayments = *u.TotalPayments
	}
	if u.SuccessRate != nil {
		b.SuccessRate = *u.SuccessRate
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.InitiatedBy != nil {
		b.InitiatedBy = *u.InitiatedBy
	}
	b.UpdatedAt = f.tick()

	f.writes++
	f.batches[id] = b

	return true, nil
}

func (f *fakeRepository) GetBatchByID(_ context.Context, id int64) (*types.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.batches[id]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("batch %d not found", id))
	}
	return &b, nil
}

func (f *fakeRepository) GetBatchByCode(_ context.Context, code string) (*types.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.batches {
		if b.BatchCode == code {
			return &b, nil
		}
	}
	return nil, errors.NotFound(fmt.Sprintf("batch %q not found", code))
}

func (f *fakeRepository) ListBatches(_ context.Context, limit, offset int) ([]types.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := make([]types.Batch, 0, len(f.batches))
	for _, b := range f.batches {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return window(all, limit, offset), nil
}

func (f *fakeRepository) DeleteBatch(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.batches[id]; !ok {
		return errors.NotFound(fmt.Sprintf("batch %d not found", id))
	}

	delete(f.batches, id)
	for pid, p := range f.pensioners {
		if p.BatchID != nil && *p.BatchID == id {
			p.BatchID = nil
			f.pensioners[pid] = p
		}
	}
	f.writes++

	return nil
}

func (f *fakeRepository) CreatePensioner(_ context.Context, p types.NewPensioner) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.BatchID != nil {
		if _, ok := f.batches[*p.BatchID]; !ok {
			return 0, errors.ReferentialViolation(fmt.Sprintf("batch %d does not exist", *p.BatchID))
		}
	}

	f.nextID++
	f.writes++
	now := f.tick()
	f.pensioners[f.nextID] = types.Pensioner{
		ID:                f.nextID,
		UniqueID:          p.UniqueID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		TypeID:            p.TypeID,
		MSISDN:            p.MSISDN,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Comment:           p.Comment,
		Status:            p.Status,
		HomeTransactionID: p.HomeTransactionID,
		BatchID:           p.BatchID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	return f.nextID, nil
}

func (f *fakeRepository) UpdatePensioner(_ context.Context, id int64, u types.PensionerUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u.BatchID != nil {
		if _, ok := f.batches[*u.BatchID]; !ok {
			return false, errors.ReferentialViolation(fmt.Sprintf("batch %d does not exist", *u.BatchID))
		}
	}

	p, ok := f.pensioners[id]
	if !ok {
		return false, nil
	}

	if u.UniqueID != nil {
		p.UniqueID = *u.UniqueID
	}
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.TypeID != nil {
		p.TypeID = u.TypeID
	}
	if u.MSISDN != nil {
		p.MSISDN = *u.MSISDN
	}
	if u.Amount != nil {
		p.Amount = *u.Amount
	}
	if u.Currency != nil {
		p.Currency = *u.Currency
	}
	if u.Comment != nil {
		p.Comment = u.Comment
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.HomeTransactionID != nil {
		p.HomeTransactionID = u.HomeTransactionID
	}
	if u.BatchID != nil {
		p.BatchID = u.BatchID
	}
	p.UpdatedAt = f.tick()

	f.writes++
	f.pensioners[id] = p

	return true, nil
}

func (f *fakeRepository) GetPensionerByID(_ context.Context, id int64) (*types.Pensioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pensioners[id]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
	}
	return &p, nil
}

func (f *fakeRepository) GetPensionerByUniqueID(_ context.Context, uniqueID string) (*types.Pensioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.pensioners {
		if p.UniqueID == uniqueID {
			return &p, nil
		}
	}
	return nil, errors.NotFound(fmt.Sprintf("pensioner %q not found", uniqueID))
}

func (f *fakeRepository) ListPensionersByBatch(_ context.Context, batchID int64) ([]types.Pensioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []types.Pensioner
	for _, p := range f.pensioners {
		if p.BatchID != nil && *p.BatchID == batchID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (f *fakeRepository) ListPensioners(_ context.Context, limit, offset int) ([]types.Pensioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := make([]types.Pensioner, 0, len(f.pensioners))
	for _, p := range f.pensioners {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return window(all, limit, offset), nil
}

func (f *fakeRepository) DeletePensioner(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pensioners[id]; !ok {
		return errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
	}
	delete(f.pensioners, id)
	f.writes++

	return nil
}

func (f *fakeRepository) ListBatchPensioners(_ context.Context) ([]types.BatchPensioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []types.BatchPensioner
	for _, p := range f.pensioners {
		if p.BatchID == nil {
			continue
		}
		rows = append(rows, types.BatchPensioner{Batch: f.batches[*p.BatchID], Pensioner: p})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Pensioner.ID < rows[j].Pensioner.ID })

	return rows, nil
}

func window[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
