package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInitiator is recorded as initiated_by when the caller supplies none.
const DefaultInitiator = "admin"

type Batch struct {
	ID            int64           `db:"id" json:"id"`
	BatchCode     string          `db:"batch_code" json:"batch_code"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	TotalPayments int64           `db:"total_payments" json:"total_payments"`
	SuccessRate   float64         `db:"success_rate" json:"success_rate"`
	Status        BatchStatus     `db:"status" json:"status"`
	InitiatedBy   string          `db:"initiated_by" json:"initiated_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewBatch holds the caller-supplied fields of a batch to be created. An empty
// Status means pending.
type NewBatch struct {
	BatchCode     string
	TotalAmount   decimal.Decimal
	TotalPayments int64
	InitiatedBy   string
	Status        BatchStatus
	SuccessRate   float64
}

// BatchUpdate is a partial update; nil fields are left untouched.
type BatchUpdate struct {
	BatchCode     *string
	TotalAmount   *decimal.Decimal
	TotalPayments *int64
	SuccessRate   *float64
	Status        *BatchStatus
	InitiatedBy   *string
}

func (u BatchUpdate) IsEmpty() bool {
	return u.BatchCode == nil &&
		u.TotalAmount == nil &&
		u.TotalPayments == nil &&
		u.SuccessRate == nil &&
		u.Status == nil &&
		u.InitiatedBy == nil
}

// BatchPensioner is one row of the batch/pensioner join used for reporting.
type BatchPensioner struct {
	Batch     Batch     `json:"batch"`
	Pensioner Pensioner `json:"pensioner"`
}

// BatchSummary aggregates the pensioners attached to a batch.
type BatchSummary struct {
	BatchID     int64                     `json:"batch_id"`
	BatchCode   string                    `json:"batch_code"`
	Pensioners  int64                     `json:"pensioners"`
	ByStatus    map[PensionerStatus]int64 `json:"by_status"`
	TotalAmount decimal.Decimal           `json:"total_amount"`
	SuccessRate float64                   `json:"success_rate"`
}
