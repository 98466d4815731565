package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DuplicateKeyValue   string = "23505"
	ForeignKeyViolation string = "23503"
)

var (
	ErrDuplicateKeyValue = stderrors.New("duplicate key value")
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id             BIGSERIAL PRIMARY KEY,
	batch_code     TEXT NOT NULL UNIQUE,
	total_amount   NUMERIC NOT NULL DEFAULT 0,
	total_payments BIGINT NOT NULL DEFAULT 0,
	success_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'pending'
	               CHECK (status IN ('pending', 'completed', 'partial')),
	initiated_by   TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS batches_created_at_idx ON batches (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS pensioners (
	id                  BIGSERIAL PRIMARY KEY,
	unique_id           TEXT NOT NULL UNIQUE,
	first_name          TEXT NOT NULL,
	last_name           TEXT NOT NULL,
	type_id             TEXT,
	msisdn              TEXT NOT NULL,
	amount              NUMERIC NOT NULL,
	currency            TEXT NOT NULL DEFAULT 'XOF',
	comment             TEXT,
	status              TEXT NOT NULL DEFAULT 'pending'
	                    CHECK (status IN ('pending', 'validated', 'processing', 'success', 'failed')),
	home_transaction_id TEXT,
	batch_id            BIGINT REFERENCES batches (id) ON DELETE SET NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS pensioners_batch_id_idx ON pensioners (batch_id, created_at);
CREATE INDEX IF NOT EXISTS pensioners_created_at_idx ON pensioners (created_at DESC, id DESC);
`

// Migrate creates the tables when they don't exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pg.Exec(ctx, schema); err != nil {
		return errors.StorageFailure("couldn't migrate schema", err)
	}
	return nil
}

// inTx runs fn inside a transaction that is committed when fn succeeds and
// rolled back otherwise.
func (p *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pg.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// wrap turns a driver error into a ServiceError, keeping service errors
// raised inside transactions as they are.
func (p *Postgres) wrap(message string, err error) error {
	var se errors.ServiceError
	if stderrors.As(err, &se) {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case DuplicateKeyValue:
			err = fmt.Errorf("%w: %s", ErrDuplicateKeyValue, pgErr.ConstraintName)
		case ForeignKeyViolation:
			return errors.ReferentialViolation("referenced batch does not exist")
		}
	}

	p.log.Error(message, "error", err)

	return errors.StorageFailure(message, err)
}

// setClause accumulates "column = $n" assignments of a partial update.
type setClause struct {
	columns []string
	args    []any
}

func (s *setClause) add(column string, value any) {
	s.args = append(s.args, value)
	s.columns = append(s.columns, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setClause) String() string {
	return strings.Join(s.columns, ", ")
}

func nextPlaceholder(args []any) string {
	return fmt.Sprintf("$%d", len(args)+1)
}
