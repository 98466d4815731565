package store

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/shopspring/decimal"
)

type fixture struct {
	repo       *fakeRepository
	batches    *BatchStore
	pensioners *PensionerStore
	reporter   *Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepository()
	config := &Config{Initiator: "ops"}
	batches := NewBatchStore(config, repo, nil)
	pensioners := NewPensionerStore(config, repo, nil)

	return &fixture{
		repo:       repo,
		batches:    batches,
		pensioners: pensioners,
		reporter:   NewReporter(config, repo, batches, pensioners),
	}
}

func (f *fixture) createBatch(t *testing.T, code string) int64 {
	t.Helper()

	id, err := f.batches.Create(context.Background(), types.NewBatch{
		BatchCode:     code,
		TotalAmount:   decimal.RequireFromString("150000.50"),
		TotalPayments: 3,
	})
	if err != nil {
		t.Fatalf("create batch %s: %v", code, err)
	}
	return id
}

func newPensioner(uniqueID string, batchID *int64) types.NewPensioner {
	return types.NewPensioner{
		UniqueID:  uniqueID,
		FirstName: "Awa",
		LastName:  "Traoré",
		MSISDN:    "22670000000",
		Amount:    decimal.RequireFromString("50000"),
		BatchID:   batchID,
	}
}

func TestBatchCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.createBatch(t, "LOT-001")

	batch, err := f.batches.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}

	if batch.BatchCode != "LOT-001" || batch.TotalPayments != 3 ||
		!batch.TotalAmount.Equal(decimal.RequireFromString("150000.50")) {
		t.Fatalf("fields don't match the input: %+v", batch)
	}

	if batch.Status != types.BatchPending || batch.SuccessRate != 0 {
		t.Fatalf("expected pending with a zero success rate, got %s/%v", batch.Status, batch.SuccessRate)
	}

	if batch.InitiatedBy != "ops" {
		t.Fatalf("expected the configured initiator, got %q", batch.InitiatedBy)
	}

	if batch.CreatedAt.IsZero() || !batch.UpdatedAt.Equal(batch.CreatedAt) {
		t.Fatalf("created_at and updated_at must be set and equal, got %v/%v", batch.CreatedAt, batch.UpdatedAt)
	}

	byCode, err := f.batches.GetByCode(ctx, "LOT-001")
	if err != nil || byCode.ID != id {
		t.Fatalf("get by code: %v, %+v", err, byCode)
	}
}

func TestBatchRejectsInvalidStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.batches.Create(ctx, types.NewBatch{BatchCode: "LOT-X", Status: "success"})
	if !stderrors.Is(err, errors.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	id := f.createBatch(t, "LOT-002")
	writes := f.repo.writes

	bad := types.BatchStatus("archived")
	if _, err := f.batches.Update(ctx, id, types.BatchUpdate{Status: &bad}); !stderrors.Is(err, errors.ErrInvalidStatus) {
		t.Fatalf("update: expected ErrInvalidStatus, got %v", err)
	}

	if _, err := f.batches.UpdateStatus(ctx, id, "failed"); !stderrors.Is(err, errors.ErrInvalidStatus) {
		t.Fatalf("update status: expected ErrInvalidStatus, got %v", err)
	}

	if f.repo.writes != writes {
		t.Fatalf("rejected writes must not reach the repository")
	}

	batch, _ := f.batches.GetByID(ctx, id)
	if batch.Status != types.BatchPending {
		t.Fatalf("status changed to %s", batch.Status)
	}
}

func TestBatchPartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.createBatch(t, "LOT-003")
	before, _ := f.batches.GetByID(ctx, id)

	payments := int64(4)
	ok, err := f.batches.Update(ctx, id, types.BatchUpdate{TotalPayments: &payments})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	after, _ := f.batches.GetByID(ctx, id)
	if after.TotalPayments != 4 {
		t.Fatalf("total_payments not updated: %d", after.TotalPayments)
	}

	if after.BatchCode != before.BatchCode || !after.TotalAmount.Equal(before.TotalAmount) ||
		after.Status != before.Status || after.InitiatedBy != before.InitiatedBy ||
		!after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("unsupplied fields changed:\nbefore %+v\nafter  %+v", before, after)
	}

	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updated_at did not advance")
	}
}

func TestBatchUpdateReportsFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.createBatch(t, "LOT-004")

	if ok, err := f.batches.Update(ctx, id, types.BatchUpdate{}); ok || err != nil {
		t.Fatalf("empty update: want false/nil, got %v/%v", ok, err)
	}

	status := types.BatchCompleted
	if ok, err := f.batches.Update(ctx, 999, types.BatchUpdate{Status: &status}); ok || err != nil {
		t.Fatalf("unknown id: want false/nil, got %v/%v", ok, err)
	}

	if ok, err := f.batches.UpdateSuccessRate(ctx, 999, 50); ok || err != nil {
		t.Fatalf("unknown id: want false/nil, got %v/%v", ok, err)
	}
}

func TestBatchNarrowMutators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.createBatch(t, "LOT-005")

	if ok, err := f.batches.UpdateStatus(ctx, id, types.BatchPartial); !ok || err != nil {
		t.Fatalf("update status: %v/%v", ok, err)
	}

	if ok, err := f.batches.UpdateSuccessRate(ctx, id, 66.67); !ok || err != nil {
		t.Fatalf("update success rate: %v/%v", ok, err)
	}

	batch, _ := f.batches.GetByID(ctx, id)
	if batch.Status != types.BatchPartial || batch.SuccessRate != 66.67 {
		t.Fatalf("unexpected batch %+v", batch)
	}

	for _, rate := range []float64{-1, 100.5} {
		if _, err := f.batches.UpdateSuccessRate(ctx, id, rate); !stderrors.Is(err, errors.ErrMalformedInput) {
			t.Errorf("rate %v: expected ErrMalformedInput, got %v", rate, err)
		}
	}
}

func TestBatchDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	keep := f.createBatch(t, "LOT-006")
	drop := f.createBatch(t, "LOT-007")

	writes := f.repo.writes
	if err := f.batches.Delete(ctx, 12345); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.repo.writes != writes {
		t.Fatalf("deleting an unknown id modified the store")
	}

	if err := f.batches.Delete(ctx, drop); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.batches.GetByID(ctx, drop); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("deleted batch is still there: %v", err)
	}

	if _, err := f.batches.GetByID(ctx, keep); err != nil {
		t.Fatalf("the other batch must survive: %v", err)
	}
}

func TestBatchListOrderAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []int64
	for _, code := range []string{"A", "B", "C", "D", "E"} {
		ids = append(ids, f.createBatch(t, code))
	}

	first, err := f.batches.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 2 || first[0].ID != ids[4] || first[1].ID != ids[3] {
		t.Fatalf("expected newest first, got %+v", first)
	}

	again, _ := f.batches.List(ctx, 2, 0)
	for i := range first {
		if first[i].ID != again[i].ID {
			t.Fatalf("listing is not stable")
		}
	}

	last, _ := f.batches.List(ctx, 2, 4)
	if len(last) != 1 || last[0].ID != ids[0] {
		t.Fatalf("unexpected last page %+v", last)
	}

	empty, err := f.batches.List(ctx, 10, 100)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected an empty non-nil page, got %v/%v", empty, err)
	}
}

func TestStorageFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.repo.failWith = errors.StorageFailure("couldn't create batch", stderrors.New("connection refused"))

	_, err := f.batches.Create(context.Background(), types.NewBatch{BatchCode: "LOT-ERR"})
	if !stderrors.Is(err, errors.ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
}

func TestPensionerCreateDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.pensioners.Create(ctx, newPensioner("PEN-1", nil))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := f.pensioners.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if p.Currency != "XOF" || p.Status != types.PensionerPending || p.BatchID != nil {
		t.Fatalf("unexpected defaults %+v", p)
	}

	byKey, err := f.pensioners.GetByUniqueID(ctx, "PEN-1")
	if err != nil || byKey.ID != id {
		t.Fatalf("get by unique id: %v %+v", err, byKey)
	}
}

func TestPensionerRejectsInvalidStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	np := newPensioner("PEN-2", nil)
	np.Status = "completed"
	if _, err := f.pensioners.Create(ctx, np); !stderrors.Is(err, errors.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if len(f.repo.pensioners) != 0 {
		t.Fatalf("no pensioner should have been created")
	}

	id, _ := f.pensioners.Create(ctx, newPensioner("PEN-3", nil))
	if _, err := f.pensioners.UpdateStatus(ctx, id, "partial"); !stderrors.Is(err, errors.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestPensionerStatusTransitionsAreUnenforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, _ := f.pensioners.Create(ctx, newPensioner("PEN-4", nil))

	for _, status := range []types.PensionerStatus{types.PensionerSuccess, types.PensionerPending, types.PensionerFailed} {
		if ok, err := f.pensioners.UpdateStatus(ctx, id, status); !ok || err != nil {
			t.Fatalf("status %s: %v/%v", status, ok, err)
		}
	}
}

func TestPensionerReferentialViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := int64(42)
	if _, err := f.pensioners.Create(ctx, newPensioner("PEN-5", &missing)); !stderrors.Is(err, errors.ErrReferentialViolation) {
		t.Fatalf("expected ErrReferentialViolation, got %v", err)
	}

	if _, err := f.pensioners.GetByUniqueID(ctx, "PEN-5"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("the rejected pensioner must not exist: %v", err)
	}

	zero := int64(0)
	if _, err := f.pensioners.Create(ctx, newPensioner("PEN-6", &zero)); !stderrors.Is(err, errors.ErrReferentialViolation) {
		t.Fatalf("expected ErrReferentialViolation for batch 0, got %v", err)
	}

	id, _ := f.pensioners.Create(ctx, newPensioner("PEN-7", nil))
	if _, err := f.pensioners.Update(ctx, id, types.PensionerUpdate{BatchID: &missing}); !stderrors.Is(err, errors.ErrReferentialViolation) {
		t.Fatalf("update: expected ErrReferentialViolation, got %v", err)
	}
}

func TestPensionerAttachAndBatchLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchID := f.createBatch(t, "LOT-010")
	first, _ := f.pensioners.Create(ctx, newPensioner("PEN-10", &batchID))
	loose, _ := f.pensioners.Create(ctx, newPensioner("PEN-11", nil))

	if ok, err := f.pensioners.Update(ctx, loose, types.PensionerUpdate{BatchID: &batchID}); !ok || err != nil {
		t.Fatalf("attach: %v/%v", ok, err)
	}

	members, err := f.pensioners.GetByBatchID(ctx, batchID)
	if err != nil {
		t.Fatalf("get by batch: %v", err)
	}
	if len(members) != 2 || members[0].ID != first || members[1].ID != loose {
		t.Fatalf("expected creation order ascending, got %+v", members)
	}

	none, err := f.pensioners.GetByBatchID(ctx, 777)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("unknown batch should give an empty list, got %v/%v", none, err)
	}
}

func TestDeleteBatchDetachesPensioners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchID := f.createBatch(t, "LOT-011")
	pid, _ := f.pensioners.Create(ctx, newPensioner("PEN-12", &batchID))

	if err := f.batches.Delete(ctx, batchID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	p, err := f.pensioners.GetByID(ctx, pid)
	if err != nil {
		t.Fatalf("pensioner must survive the batch: %v", err)
	}
	if p.BatchID != nil {
		t.Fatalf("pensioner still points to batch %d", *p.BatchID)
	}
}

func TestPensionerDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, _ := f.pensioners.Create(ctx, newPensioner("PEN-13", nil))

	if err := f.pensioners.Delete(ctx, id+100); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.pensioners.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.pensioners.GetByID(ctx, id); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestReporter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows, err := f.reporter.BatchesWithPensioners(ctx)
	if err != nil || rows == nil || len(rows) != 0 {
		t.Fatalf("expected an empty join, got %v/%v", rows, err)
	}

	batchID := f.createBatch(t, "LOT-020")
	var ids []int64
	for _, key := range []string{"R-1", "R-2", "R-3"} {
		id, _ := f.pensioners.Create(ctx, newPensioner(key, &batchID))
		ids = append(ids, id)
	}
	f.pensioners.Create(ctx, newPensioner("R-loose", nil))

	f.pensioners.UpdateStatus(ctx, ids[0], types.PensionerSuccess)
	f.pensioners.UpdateStatus(ctx, ids[1], types.PensionerSuccess)
	f.pensioners.UpdateStatus(ctx, ids[2], types.PensionerFailed)

	rows, err = f.reporter.BatchesWithPensioners(ctx)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 joined rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Batch.ID != batchID {
			t.Fatalf("row joined with the wrong batch: %+v", row)
		}
	}

	summary, err := f.reporter.Summary(ctx, batchID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Pensioners != 3 || summary.ByStatus[types.PensionerSuccess] != 2 ||
		summary.ByStatus[types.PensionerFailed] != 1 || summary.ByStatus[types.PensionerPending] != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !summary.TotalAmount.Equal(decimal.RequireFromString("150000")) {
		t.Fatalf("unexpected total %s", summary.TotalAmount)
	}

	rate, err := f.reporter.RefreshSuccessRate(ctx, batchID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rate != 66.67 {
		t.Fatalf("want 66.67, got %v", rate)
	}

	batch, _ := f.batches.GetByID(ctx, batchID)
	if batch.SuccessRate != 66.67 {
		t.Fatalf("success rate not stored: %v", batch.SuccessRate)
	}

	if _, err := f.reporter.Summary(ctx, 999); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshSuccessRateOnVanishedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchID := f.createBatch(t, "LOT-030")
	f.repo.beforeUpdateBatch = func() {
		if err := f.repo.DeleteBatch(ctx, batchID); err != nil {
			t.Errorf("delete: %v", err)
		}
	}

	if _, err := f.reporter.RefreshSuccessRate(ctx, batchID); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPensionerCreateNamesFirstMissingField(t *testing.T) {
	f := newFixture(t)

	p := newPensioner("  ", nil)
	p.FirstName = ""
	p.MSISDN = " "

	for range 20 {
		_, err := f.pensioners.Create(context.Background(), p)
		if !stderrors.Is(err, errors.ErrMalformedInput) {
			t.Fatalf("expected ErrMalformedInput, got %v", err)
		}
		if err.Error() != "unique_id is required" {
			t.Fatalf("expected the first blank field to be named, got %q", err.Error())
		}
	}
}
