package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...any) error
}

const batchColumns = `id, batch_code, total_amount, total_payments, success_rate,
	status, initiated_by, created_at, updated_at`

func scanBatch(row scanner) (*types.Batch, error) {
	var (
		b                types.Batch
		amount           string
		created, updated int64
	)

	err := row.Scan(&b.ID, &b.BatchCode, &amount, &b.TotalPayments, &b.SuccessRate,
		&b.Status, &b.InitiatedBy, &created, &updated)
	if err != nil {
		return nil, err
	}

	b.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("batch %d total_amount: %w", b.ID, err)
	}
	b.CreatedAt, b.UpdatedAt = fromStamp(created), fromStamp(updated)

	return &b, nil
}

func (s *SQLite) CreateBatch(ctx context.Context, b types.NewBatch) (int64, error) {
	var id int64
	now := s.stamp()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO batches (batch_code, total_amount, total_payments, success_rate,
				status, initiated_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.BatchCode, b.TotalAmount.String(), b.TotalPayments, b.SuccessRate,
			string(b.Status), b.InitiatedBy, now, now,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, s.wrap("couldn't create batch", err)
	}

	return id, nil
}

func (s *SQLite) UpdateBatch(ctx context.Context, id int64, u types.BatchUpdate) (bool, error) {
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

	set.add("updated_at", s.stamp())

	var affected int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE batches SET "+set.String()+" WHERE id = ?", append(set.args, id)...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, s.wrap("couldn't update batch", err)
	}

	return affected > 0, nil
}

func (s *SQLite) GetBatchByID(ctx context.Context, id int64) (*types.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ?`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("batch %d not found", id))
	}
	if err != nil {
		return nil, s.wrap("couldn't get batch", err)
	}

	return b, nil
}

func (s *SQLite) GetBatchByCode(ctx context.Context, code string) (*types.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE batch_code = ?`, code))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("batch %q not found", code))
	}
	if err != nil {
		return nil, s.wrap("couldn't get batch by code", err)
	}

	return b, nil
}

func (s *SQLite) ListBatches(ctx context.Context, limit, offset int) ([]types.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+batchColumns+` FROM batches
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, s.wrap("couldn't list batches", err)
	}
	defer rows.Close()

	batches := make([]types.Batch, 0, limit)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, s.wrap("couldn't scan batch", err)
		}
		batches = append(batches, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrap("couldn't list batches", err)
	}

	return batches, nil
}

// DeleteBatch removes the batch; the foreign key detaches its pensioners.
func (s *SQLite) DeleteBatch(ctx context.Context, id int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.NotFound(fmt.Sprintf("batch %d not found", id))
		}
		return nil
	})
	if err != nil {
		return s.wrap("couldn't delete batch", err)
	}

	return nil
}
