package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileLedger keeps the ledger as a single JSON document. Every append
// rewrites the document through a temporary file and a rename, so readers
// never see a half written file. Read-count-append runs under a mutex for
// the goroutines of one process and under an advisory lock on "<path>.lock"
// for every process sharing the file, such as the server and pensionctl.
type FileLedger struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
	log  *slog.Logger
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  slog.With("component", "ledger", "path", path),
	}
}

// locked runs fn holding both the in-process mutex and the file lock. Readers
// share the file lock, appends hold it exclusively.
func (l *FileLedger) locked(ctx context.Context, exclusive bool, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.StorageFailure("couldn't create ledger directory", err)
	}

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = l.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = l.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.StorageFailure("couldn't lock ledger", err)
	}
	if !ok {
		return errors.StorageFailure("couldn't lock ledger", nil)
	}
	defer func() {
		if err := l.lock.Unlock(); err != nil {
			l.log.Error("couldn't unlock ledger", "error", err)
		}
	}()

	return fn()
}

func (l *FileLedger) Append(ctx context.Context, unit types.IngestedBatch) (types.IngestedBatch, int, error) {
	if err := ctx.Err(); err != nil {
		return types.IngestedBatch{}, 0, err
	}

	var total int
	err := l.locked(ctx, true, func() error {
		units, err := l.load()
		if err != nil {
			return err
		}

		ids := make([]string, len(units))
		for i, u := range units {
			ids[i] = u.BatchID
		}

		unit.BatchID = NextBatchID(unit.Date.Time, ids)
		units = append(units, unit)

		if err := l.save(units); err != nil {
			return err
		}

		total = len(units)
		return nil
	})
	if err != nil {
		return types.IngestedBatch{}, 0, err
	}

	l.log.Info("batch appended", "batch_id", unit.BatchID, "participants", len(unit.Participants))

	return unit, total, nil
}

func (l *FileLedger) List(ctx context.Context) ([]types.IngestedBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var units []types.IngestedBatch
	err := l.locked(ctx, false, func() error {
		var err error
		units, err = l.load()
		return err
	})
	if err != nil {
		return nil, err
	}

	return units, nil
}

func (l *FileLedger) Get(ctx context.Context, batchID string) (*types.IngestedBatch, error) {
	units, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range units {
		if units[i].BatchID == batchID {
			return &units[i], nil
		}
	}

	return nil, errors.NotFound(fmt.Sprintf("ingested batch %q not found", batchID))
}

// load reads the ledger. A missing file is an empty ledger. A file that
// cannot be decoded is moved aside and the ledger starts over empty.
func (l *FileLedger) load() ([]types.IngestedBatch, error) {
	data, err := os.ReadFile(l.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return []types.IngestedBatch{}, nil
	}
	if err != nil {
		return nil, errors.StorageFailure("couldn't read ledger", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []types.IngestedBatch{}, nil
	}

	var units []types.IngestedBatch
	if err := json.Unmarshal(data, &units); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", l.path, time.Now().Unix())
		l.log.Warn("ledger is unreadable, starting a new one", "backup", backup, "error", err)

		// Readers share the lock, so another one may have moved it already.
		if err := os.Rename(l.path, backup); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.StorageFailure("couldn't move unreadable ledger aside", err)
		}
		return []types.IngestedBatch{}, nil
	}

	if units == nil {
		units = []types.IngestedBatch{}
	}

	return units, nil
}

func (l *FileLedger) save(units []types.IngestedBatch) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(units); err != nil {
		return errors.StorageFailure("couldn't encode ledger", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.StorageFailure("couldn't create ledger directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return errors.StorageFailure("couldn't create temporary ledger", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.StorageFailure("couldn't write ledger", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.StorageFailure("couldn't sync ledger", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.StorageFailure("couldn't close ledger", err)
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return errors.StorageFailure("couldn't replace ledger", err)
	}

	return nil
}
