package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pg          *pgxpool.Pool
	pingTimeout time.Duration
	now         func() time.Time
	log         *slog.Logger
}

func New(pool *pgxpool.Pool, pingTimeout time.Duration) *Postgres {
	return &Postgres{
		pg:          pool,
		pingTimeout: pingTimeout,
		now:         time.Now,
		log:         slog.With("component", "db"),
	}
}

// Connect opens a pool for the given URL. The caller owns the pool and
// closes it with Close.
func Connect(ctx context.Context, url string, pingTimeout time.Duration) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}

	return New(pool, pingTimeout), nil
}

func (p *Postgres) Close() {
	p.pg.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	timeout := p.pingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ticker := time.NewTicker(timeout)
	defer ticker.Stop()

	var err error
	// Ping 3 times with a specified time interval.
	for i := 1; i <= 3; i++ {
		// A stalled ping hangs indefinitely, so every attempt gets its own
		// deadline slightly shorter than the retry interval.
		pingCtx, cancel := context.WithTimeout(ctx, timeout-time.Millisecond*10)
		if err = p.pg.Ping(pingCtx); err == nil {
			cancel()

			return nil
		} else {
			p.log.Info("ping attempt was not successful", "attempt", i, "error", err)
		}
		cancel()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return err
}

// IsUpAndRunning is a single ping used by the health checker.
func (p *Postgres) IsUpAndRunning(ctx context.Context) error {
	return p.pg.Ping(ctx)
}
