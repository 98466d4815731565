package types

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "XOF"

type Pensioner struct {
	ID                int64           `db:"id" json:"id"`
	UniqueID          string          `db:"unique_id" json:"unique_id"`
	FirstName         string          `db:"first_name" json:"first_name"`
	LastName          string          `db:"last_name" json:"last_name"`
	TypeID            *string         `db:"type_id" json:"type_id"`
	MSISDN            string          `db:"msisdn" json:"msisdn"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Currency          string          `db:"currency" json:"currency"`
	Comment           *string         `db:"comment" json:"comment"`
	Status            PensionerStatus `db:"status" json:"status"`
	HomeTransactionID *string         `db:"home_transaction_id" json:"home_transaction_id"`
	BatchID           *int64          `db:"batch_id" json:"batch_id"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// NewPensioner holds the fields of a pensioner to be created. Empty Currency
// and Status default to XOF and pending.
type NewPensioner struct {
	UniqueID          string
	FirstName         string
	LastName          string
	TypeID            *string
	MSISDN            string
	Amount            decimal.Decimal
	Currency          string
	Comment           *string
	Status            PensionerStatus
	HomeTransactionID *string
	BatchID           *int64
}

// PensionerUpdate is a partial update; nil fields are left untouched. A
// pensioner can be moved to another batch but not detached through an update.
type PensionerUpdate struct {
	UniqueID          *string
	FirstName         *string
	LastName          *string
	TypeID            *string
	MSISDN            *string
	Amount            *decimal.Decimal
	Currency          *string
	Comment           *string
	Status            *PensionerStatus
	HomeTransactionID *string
	BatchID           *int64
}

func (u PensionerUpdate) IsEmpty() bool {
	return u.UniqueID == nil &&
		u.FirstName == nil &&
		u.LastName == nil &&
		u.TypeID == nil &&
		u.MSISDN == nil &&
		u.Amount == nil &&
		u.Currency == nil &&
		u.Comment == nil &&
		u.Status == nil &&
		u.HomeTransactionID == nil &&
		u.BatchID == nil
}
