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

const pensionerColumns = `id, unique_id, first_name, last_name, type_id, msisdn,
	amount::text, currency, comment, status, home_transaction_id, batch_id,
	created_at, updated_at`

func scanPensioner(row pgx.Row) (*types.Pensioner, error) {
	var (
		pn     types.Pensioner
		amount string
	)

	err := row.Scan(&pn.ID, &pn.UniqueID, &pn.FirstName, &pn.LastName, &pn.TypeID,
		&pn.MSISDN, &amount, &pn.Currency, &pn.Comment, &pn.Status,
		&pn.HomeTransactionID, &pn.BatchID, &pn.CreatedAt, &pn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	pn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("pensioner %d amount: %w", pn.ID, err)
	}

	return &pn, nil
}

// lockBatch checks that the batch exists and keeps it from being deleted
// until the surrounding transaction ends.
func lockBatch(ctx context.Context, tx pgx.Tx, batchID int64) error {
	var one int
	err := tx.QueryRow(ctx,
		`SELECT 1 FROM batches WHERE id = $1 FOR KEY SHARE`, batchID).Scan(&one)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.ReferentialViolation(fmt.Sprintf("batch %d does not exist", batchID))
	}
	return err
}

func (p *Postgres) CreatePensioner(ctx context.Context, pn types.NewPensioner) (int64, error) {
	var id int64
	now := p.now().UTC()

	err := p.inTx(ctx, func(tx pgx.Tx) error {
		if pn.BatchID != nil {
			if err := lockBatch(ctx, tx, *pn.BatchID); err != nil {
				return err
			}
		}

		return tx.QueryRow(ctx, `
			INSERT INTO pensioners (unique_id, first_name, last_name, type_id, msisdn,
				amount, currency, comment, status, home_transaction_id, batch_id,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $12)
			RETURNING id`,
			pn.UniqueID, pn.FirstName, pn.LastName, pn.TypeID, pn.MSISDN,
			pn.Amount.String(), pn.Currency, pn.Comment, string(pn.Status),
			pn.HomeTransactionID, pn.BatchID, now,
		).Scan(&id)
	})
	if err != nil {
		return 0, p.wrap("couldn't create pensioner", err)
	}

	return id, nil
}

func (p *Postgres) UpdatePensioner(ctx context.Context, id int64, u types.PensionerUpdate) (bool, error) {
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

	set.add("updated_at", p.now().UTC())
	query := fmt.Sprintf("UPDATE pensioners SET %s WHERE id = %s", set.String(), nextPlaceholder(set.args))
	args := append(set.args, id)

	var affected int64
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		if u.BatchID != nil {
			if err := lockBatch(ctx, tx, *u.BatchID); err != nil {
				return err
			}
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, p.wrap("couldn't update pensioner", err)
	}

	return affected > 0, nil
}

func (p *Postgres) GetPensionerByID(ctx context.Context, id int64) (*types.Pensioner, error) {
	pn, err := scanPensioner(p.pg.QueryRow(ctx,
		`SELECT `+pensionerColumns+` FROM pensioners WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
	}
	if err != nil {
		return nil, p.wrap("couldn't get pensioner", err)
	}

	return pn, nil
}

func (p *Postgres) GetPensionerByUniqueID(ctx context.Context, uniqueID string) (*types.Pensioner, error) {
	pn, err := scanPensioner(p.pg.QueryRow(ctx,
		`SELECT `+pensionerColumns+` FROM pensioners WHERE unique_id = $1`, uniqueID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("pensioner %q not found", uniqueID))
	}
	if err != nil {
		return nil, p.wrap("couldn't get pensioner by unique_id", err)
	}

	return pn, nil
}

func (p *Postgres) ListPensionersByBatch(ctx context.Context, batchID int64) ([]types.Pensioner, error) {
	return p.queryPensioners(ctx, `
		SELECT `+pensionerColumns+` FROM pensioners
		WHERE batch_id = $1
		ORDER BY created_at ASC, id ASC`, batchID)
}

func (p *Postgres) ListPensioners(ctx context.Context, limit, offset int) ([]types.Pensioner, error) {
	return p.queryPensioners(ctx, `
		SELECT `+pensionerColumns+` FROM pensioners
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}

func (p *Postgres) queryPensioners(ctx context.Context, query string, args ...any) ([]types.Pensioner, error) {
	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, p.wrap("couldn't list pensioners", err)
	}
	defer rows.Close()

	var pensioners []types.Pensioner
	for rows.Next() {
		pn, err := scanPensioner(rows)
		if err != nil {
			return nil, p.wrap("couldn't scan pensioner", err)
		}
		pensioners = append(pensioners, *pn)
	}

	if err := rows.Err(); err != nil {
		return nil, p.wrap("couldn't list pensioners", err)
	}

	return pensioners, nil
}

func (p *Postgres) DeletePensioner(ctx context.Context, id int64) error {
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM pensioners WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
		}
		return nil
	})
	if err != nil {
		return p.wrap("couldn't delete pensioner", err)
	}

	return nil
}
