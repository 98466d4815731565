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

const pensionerColumns = `id, unique_id, first_name, last_name, type_id, msisdn,
	amount, currency, comment, status, home_transaction_id, batch_id,
	created_at, updated_at`

func scanPensioner(row scanner) (*types.Pensioner, error) {
	var (
		pn               types.Pensioner
		amount           string
		created, updated int64
	)

	err := row.Scan(&pn.ID, &pn.UniqueID, &pn.FirstName, &pn.LastName, &pn.TypeID,
		&pn.MSISDN, &amount, &pn.Currency, &pn.Comment, &pn.Status,
		&pn.HomeTransactionID, &pn.BatchID, &created, &updated)
	if err != nil {
		return nil, err
	}

	pn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("pensioner %d amount: %w", pn.ID, err)
	}
	pn.CreatedAt, pn.UpdatedAt = fromStamp(created), fromStamp(updated)

	return &pn, nil
}

// batchExists runs inside a write transaction, which already holds the
// database lock, so the batch cannot vanish before the pensioner is written.
func batchExists(ctx context.Context, tx *sql.Tx, batchID int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM batches WHERE id = ?`, batchID).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.ReferentialViolation(fmt.Sprintf("batch %d does not exist", batchID))
	}
	return err
}

func (s *SQLite) CreatePensioner(ctx context.Context, pn types.NewPensioner) (int64, error) {
	var id int64
	now := s.stamp()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if pn.BatchID != nil {
			if err := batchExists(ctx, tx, *pn.BatchID); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO pensioners (unique_id, first_name, last_name, type_id, msisdn,
				amount, currency, comment, status, home_transaction_id, batch_id,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pn.UniqueID, pn.FirstName, pn.LastName, pn.TypeID, pn.MSISDN,
			pn.Amount.String(), pn.Currency, pn.Comment, string(pn.Status),
			pn.HomeTransactionID, pn.BatchID, now, now,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, s.wrap("couldn't create pensioner", err)
	}

	return id, nil
}

func (s *SQLite) UpdatePensioner(ctx context.Context, id int64, u types.PensionerUpdate) (bool, error) {
	var set setClause

	if u.UniqueID != nil {
		set.add("unique_id", *u.UniqueID)
	}
	if u.FirstName != nil {
		set.add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		set.add("last_name", *u.LastName)
	}
	if u.TypeID != nil {
		set.add("type_id", *u.TypeID)
	}
	if u.MSISDN != nil {
		set.add("msisdn", *u.MSISDN)
	}
	if u.Amount != nil {
		set.add("amount", u.Amount.String())
	}
	if u.Currency != nil {
		set.add("currency", *u.Currency)
	}
	if u.Comment != nil {
		set.add("comment", *u.Comment)
	}
	if u.Status != nil {
		set.add("status", string(*u.Status))
	}
	if u.HomeTransactionID != nil {
		set.add("home_transaction_id", *u.HomeTransactionID)
	}
	if u.BatchID != nil {
		set.add("batch_id", *u.BatchID)
	}

	if len(set.args) == 0 {
		return false, nil
	}

	set.add("updated_at", s.stamp())

	var affected int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if u.BatchID != nil {
			if err := batchExists(ctx, tx, *u.BatchID); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE pensioners SET "+set.String()+" WHERE id = ?", append(set.args, id)...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, s.wrap("couldn't update pensioner", err)
	}

	return affected > 0, nil
}

func (s *SQLite) GetPensionerByID(ctx context.Context, id int64) (*types.Pensioner, error) {
	pn, err := scanPensioner(s.db.QueryRowContext(ctx,
		`SELECT `+pensionerColumns+` FROM pensioners WHERE id = ?`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
	}
	if err != nil {
		return nil, s.wrap("couldn't get pensioner", err)
	}

	return pn, nil
}

func (s *SQLite) GetPensionerByUniqueID(ctx context.Context, uniqueID string) (*types.Pensioner, error) {
	pn, err := scanPensioner(s.db.QueryRowContext(ctx,
		`SELECT `+pensionerColumns+` FROM pensioners WHERE unique_id = ?`, uniqueID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("pensioner %q not found", uniqueID))
	}
	if err != nil {
		return nil, s.wrap("couldn't get pensioner by unique_id", err)
	}

	return pn, nil
}

func (s *SQLite) ListPensionersByBatch(ctx context.Context, batchID int64) ([]types.Pensioner, error) {
	return s.queryPensioners(ctx, `
		SELECT `+pensionerColumns+` FROM pensioners
		WHERE batch_id = ?
		ORDER BY created_at ASC, id ASC`, batchID)
}

func (s *SQLite) ListPensioners(ctx context.Context, limit, offset int) ([]types.Pensioner, error) {
	return s.queryPensioners(ctx, `
		SELECT `+pensionerColumns+` FROM pensioners
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
}

func (s *SQLite) queryPensioners(ctx context.Context, query string, args ...any) ([]types.Pensioner, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("couldn't list pensioners", err)
	}
	defer rows.Close()

	var pensioners []types.Pensioner
	for rows.Next() {
		pn, err := scanPensioner(rows)
		if err != nil {
			return nil, s.wrap("couldn't scan pensioner", err)
		}
		pensioners = append(pensioners, *pn)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrap("couldn't list pensioners", err)
	}

	return pensioners, nil
}

func (s *SQLite) DeletePensioner(ctx context.Context, id int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM pensioners WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
		}
		return nil
	})
	if err != nil {
		return s.wrap("couldn't delete pensioner", err)
	}

	return nil
}

func (s *SQLite) ListBatchPensioners(ctx context.Context) ([]types.BatchPensioner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.unique_id, p.first_name, p.last_name, p.type_id, p.msisdn,
			p.amount, p.currency, p.comment, p.status, p.home_transaction_id,
			p.batch_id, p.created_at, p.updated_at,
			b.id, b.batch_code, b.total_amount, b.total_payments, b.success_rate,
			b.status, b.initiated_by, b.created_at, b.updated_at
		FROM pensioners p
		INNER JOIN batches b ON p.batch_id = b.id
		ORDER BY b.id, p.created_at, p.id`)
	if err != nil {
		return nil, s.wrap("couldn't join batches with pensioners", err)
	}
	defer rows.Close()

	var result []types.BatchPensioner
	for rows.Next() {
		var (
			row                                    types.BatchPensioner
			pAmount, bTotal                        string
			pCreated, pUpdated, bCreated, bUpdated int64
		)
		pn, b := &row.Pensioner, &row.Batch

		err := rows.Scan(&pn.ID, &pn.UniqueID, &pn.FirstName, &pn.LastName, &pn.TypeID,
			&pn.MSISDN, &pAmount, &pn.Currency, &pn.Comment, &pn.Status,
			&pn.HomeTransactionID, &pn.BatchID, &pCreated, &pUpdated,
			&b.ID, &b.BatchCode, &bTotal, &b.TotalPayments, &b.SuccessRate,
			&b.Status, &b.InitiatedBy, &bCreated, &bUpdated)
		if err != nil {
			return nil, s.wrap("couldn't scan joined row", err)
		}

		if pn.Amount, err = decimal.NewFromString(pAmount); err != nil {
			return nil, s.wrap("couldn't scan joined row", fmt.Errorf("pensioner amount: %w", err))
		}
		if b.TotalAmount, err = decimal.NewFromString(bTotal); err != nil {
			return nil, s.wrap("couldn't scan joined row", fmt.Errorf("batch total_amount: %w", err))
		}
		pn.CreatedAt, pn.UpdatedAt = fromStamp(pCreated), fromStamp(pUpdated)
		b.CreatedAt, b.UpdatedAt = fromStamp(bCreated), fromStamp(bUpdated)

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrap("couldn't join batches with pensioners", err)
	}

	return result, nil
}
