package ingest

import (
	"context"

	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

// Ledger is the persisted sequence of ingested batches.
//
// Append assigns the batch id of unit from the date of unit.Date and stores
// the unit in one atomic step, so concurrent appends never reuse an id or
// lose each other's entries. It returns the stored unit and the ledger size
// after the append.
type Ledger interface {
	Append(ctx context.Context, unit types.IngestedBatch) (types.IngestedBatch, int, error)
	List(ctx context.Context) ([]types.IngestedBatch, error)
	Get(ctx context.Context, batchID string) (*types.IngestedBatch, error)
}
