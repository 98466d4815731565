package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const batchColumns = `id, batch_code, total_amount::text, total_payments, success_rate,
	status, initiated_by, created_at, updated_at`

func scanBatch(row pgx.Row) (*types.Batch, error) {
	var (
		b      types.Batch
		amount string
	)

	err := row.Scan(&b.ID, &b.BatchCode, &amount, &b.TotalPayments, &b.SuccessRate,
		&b.Status, &b.InitiatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("batch %d total_amount: %w", b.ID, err)
	}

	return &b, nil
}

func (p *Postgres) CreateBatch(ctx context.Context, b types.NewBatch) (int64, error) {
	var id int64
	now := p.now().UTC()

	err := p.inTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO batches (batch_code, total_amount, total_payments, success_rate,
				status, initiated_by, created_at, updated_at)
			VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $7)
			RETURNING id`,
			b.BatchCode, b.TotalAmount.String(), b.TotalPayments, b.SuccessRate,
			string(b.Status), b.InitiatedBy, now,
		).Scan(&id)
	})
	if err != nil {
		return 0, p.wrap("couldn't create batch", err)
	}

	return id, nil
}

func (p *Postgres) UpdateBatch(ctx context.Context, id int64, u types.BatchUpdate) (bool, error) {
	var set setClause

	if u.BatchCode != nil {
		set.add("batch_code", *u.BatchCode)
	}
	if u.TotalAmount != nil {
		set.add("total_amount", u.TotalAmount.String())
	}
	if u.TotalPayments != nil {
		set.add("total_payments", *u.TotalPayments)
	}
	if u.SuccessRate != nil {
		set.add("success_rate", *u.SuccessRate)
	}
	if u.Status != nil {
		set.add("status", string(*u.Status))
	}
	if u.InitiatedBy != nil {
		set.add("initiated_by", *u.InitiatedBy)
	}

	if len(set.args) == 0 {
		return false, nil
	}

	set.add("updated_at", p.now().UTC())
	query := fmt.Sprintf("UPDATE batches SET %s WHERE id = %s", set.String(), nextPlaceholder(set.args))
	args := append(set.args, id)

	var affected int64
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, p.wrap("couldn't update batch", err)
	}

	return affected > 0, nil
}

func (p *Postgres) GetBatchByID(ctx context.Context, id int64) (*types.Batch, error) {
	b, err := scanBatch(p.pg.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("batch %d not found", id))
	}
	if err != nil {
		return nil, p.wrap("couldn't get batch", err)
	}

	return b, nil
}

func (p *Postgres) GetBatchByCode(ctx context.Context, code string) (*types.Batch, error) {
	b, err := scanBatch(p.pg.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE batch_code = $1`, code))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("batch %q not found", code))
	}
	if err != nil {
		return nil, p.wrap("couldn't get batch by code", err)
	}

	return b, nil
}

func (p *Postgres) ListBatches(ctx context.Context, limit, offset int) ([]types.Batch, error) {
	rows, err := p.pg.Query(ctx, `
		SELECT `+batchColumns+` FROM batches
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, p.wrap("couldn't list batches", err)
	}
	defer rows.Close()

	batches := make([]types.Batch, 0, limit)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, p.wrap("couldn't scan batch", err)
		}
		batches = append(batches, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, p.wrap("couldn't list batches", err)
	}

	return batches, nil
}

// DeleteBatch removes the batch; the foreign key detaches its pensioners.
func (p *Postgres) DeleteBatch(ctx context.Context, id int64) error {
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound(fmt.Sprintf("batch %d not found", id))
		}
		return nil
	})
	if err != nil {
		return p.wrap("couldn't delete batch", err)
	}

	return nil
}
