// Package sqlite is the embedded storage backend. It implements the same
// repository contract as the postgres package on a single database file.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"

	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_code     TEXT NOT NULL UNIQUE,
	total_amount   TEXT NOT NULL DEFAULT '0',
	total_payments INTEGER NOT NULL DEFAULT 0,
	success_rate   REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'pending'
	               CHECK (status IN ('pending', 'completed', 'partial')),
	initiated_by   TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS batches_created_at_idx ON batches (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS pensioners (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	unique_id           TEXT NOT NULL UNIQUE,
	first_name          TEXT NOT NULL,
	last_name           TEXT NOT NULL,
	type_id             TEXT,
	msisdn              TEXT NOT NULL,
	amount              TEXT NOT NULL,
	currency            TEXT NOT NULL DEFAULT 'XOF',
	comment             TEXT,
	status              TEXT NOT NULL DEFAULT 'pending'
	                    CHECK (status IN ('pending', 'validated', 'processing', 'success', 'failed')),
	home_transaction_id TEXT,
	batch_id            INTEGER REFERENCES batches (id) ON DELETE SET NULL,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS pensioners_batch_id_idx ON pensioners (batch_id, created_at);
CREATE INDEX IF NOT EXISTS pensioners_created_at_idx ON pensioners (created_at DESC, id DESC);
`

// SQLite stores timestamps as UTC unix nanoseconds and amounts as decimal
// strings.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
	log *slog.Logger
}

// Open opens (creating when needed) the database file at path and applies
// the schema. Writes take the database lock when their transaction begins.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLite{
		db:  db,
		now: time.Now,
		log: slog.With("component", "sqlite"),
	}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.StorageFailure("couldn't migrate schema", err)
	}
	return nil
}

// IsUpAndRunning is used by the health checker.
func (s *SQLite) IsUpAndRunning(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) wrap(message string, err error) error {
	var se errors.ServiceError
	if stderrors.As(err, &se) {
		return err
	}

	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return errors.ReferentialViolation("referenced batch does not exist")
	}

	s.log.Error(message, "error", err)

	return errors.StorageFailure(message, err)
}

func (s *SQLite) stamp() int64 {
	return s.now().UTC().UnixNano()
}

func fromStamp(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

type setClause struct {
	columns []string
	args    []any
}

func (c *setClause) add(column string, value any) {
	c.columns = append(c.columns, column+" = ?")
	c.args = append(c.args, value)
}

func (c *setClause) String() string {
	return strings.Join(c.columns, ", ")
}
