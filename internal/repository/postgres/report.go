package postgres

import (
	"context"
	"fmt"

	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/shopspring/decimal"
)

func (p *Postgres) ListBatchPensioners(ctx context.Context) ([]types.BatchPensioner, error) {
	rows, err := p.pg.Query(ctx, `
		SELECT p.id, p.unique_id, p.first_name, p.last_name, p.type_id, p.msisdn,
			p.amount::text, p.currency, p.comment, p.status, p.home_transaction_id,
			p.batch_id, p.created_at, p.updated_at,
			b.id, b.batch_code, b.total_amount::text, b.total_payments, b.success_rate,
			b.status, b.initiated_by, b.created_at, b.updated_at
		FROM pensioners p
		INNER JOIN batches b ON p.batch_id = b.id
		ORDER BY b.id, p.created_at, p.id`)
	if err != nil {
		return nil, p.wrap("couldn't join batches with pensioners", err)
	}
	defer rows.Close()

	var result []types.BatchPensioner
	for rows.Next() {
		var (
			row             types.BatchPensioner
			pAmount, bTotal string
		)
		pn, b := &row.Pensioner, &row.Batch

		err := rows.Scan(&pn.ID, &pn.UniqueID, &pn.FirstName, &pn.LastName, &pn.TypeID,
			&pn.MSISDN, &pAmount, &pn.Currency, &pn.Comment, &pn.Status,
			&pn.HomeTransactionID, &pn.BatchID, &pn.CreatedAt, &pn.UpdatedAt,
			&b.ID, &b.BatchCode, &bTotal, &b.TotalPayments, &b.SuccessRate,
			&b.Status, &b.InitiatedBy, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, p.wrap("couldn't scan joined row", err)
		}

		if pn.Amount, err = decimal.NewFromString(pAmount); err != nil {
			return nil, p.wrap("couldn't scan joined row", fmt.Errorf("pensioner amount: %w", err))
		}
		if b.TotalAmount, err = decimal.NewFromString(bTotal); err != nil {
			return nil, p.wrap("couldn't scan joined row", fmt.Errorf("batch total_amount: %w", err))
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, p.wrap("couldn't join batches with pensioners", err)
	}

	return result, nil
}
