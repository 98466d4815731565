// Package redis keeps the ingestion ledger in Redis for deployments that run
// more than one writer.
package redis

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/ingest"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	redis "github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "pension:ledger"

// placeholder stands for the batch id in the document handed to the append
// script. batchId is the first field of a unit, so the first occurrence is
// the one to replace even when a cell happens to contain the same text.
const placeholder = "@@BATCH_ID@@"

// appendScript assigns the next id of a day and appends the unit in one
// step. The per-day counter is seeded from the units already in the list
// the first time a day is seen, so it agrees with a ledger migrated from a
// file.
//
// KEYS[1] units list, KEYS[2] day counter, KEYS[3] id -> position hash
// ARGV[1] date prefix, ARGV[2] unit document
var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
	local count = 0
	for _, doc in ipairs(redis.call('LRANGE', KEYS[1], 0, -1)) do
		local id = cjson.decode(doc)['batchId']
		if type(id) == 'string' and string.sub(id, 1, #ARGV[1]) == ARGV[1] then
			count = count + 1
		end
	end
	redis.call('SET', KEYS[2], count)
end

local seq = redis.call('INCR', KEYS[2])
local id = ARGV[1] .. '_' .. string.format('%03d', seq)
local first = string.find(ARGV[2], '@@BATCH_ID@@', 1, true)
local doc = string.sub(ARGV[2], 1, first - 1) .. id .. string.sub(ARGV[2], first + 12)
local size = redis.call('RPUSH', KEYS[1], doc)
redis.call('HSET', KEYS[3], id, size - 1)

return {id, size}
`)

type Ledger struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

var _ ingest.Ledger = (*Ledger)(nil)

// NewLedger stores the ledger under keys derived from prefix. The prefix is
// wrapped in a hash tag so every key lands in the same cluster slot.
func NewLedger(client redis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Ledger{
		client: client,
		prefix: "{" + prefix + "}",
		log:    slog.With("component", "ledger", "backend", "redis"),
	}
}

func (l *Ledger) unitsKey() string {
	return l.prefix + ":units"
}

func (l *Ledger) indexKey() string {
	return l.prefix + ":index"
}

func (l *Ledger) counterKey(day string) string {
	return l.prefix + ":seq:" + day
}

func (l *Ledger) Append(ctx context.Context, unit types.IngestedBatch) (types.IngestedBatch, int, error) {
	day := ingest.DatePrefix(unit.Date.Time)

	unit.BatchID = placeholder
	doc, err := encode(unit)
	if err != nil {
		return types.IngestedBatch{}, 0, errors.StorageFailure("couldn't encode ledger unit", err)
	}

	res, err := appendScript.Run(ctx, l.client,
		[]string{l.unitsKey(), l.counterKey(day), l.indexKey()},
		day, doc,
	).Slice()
	if err != nil {
		l.log.Error("couldn't append ledger unit", "error", err)
		return types.IngestedBatch{}, 0, errors.StorageFailure("couldn't append ledger unit", err)
	}

	if len(res) != 2 {
		return types.IngestedBatch{}, 0, errors.StorageFailure("couldn't append ledger unit",
			fmt.Errorf("unexpected script reply %v", res))
	}

	id, _ := res[0].(string)
	size, _ := res[1].(int64)
	unit.BatchID = id

	l.log.Info("batch appended", "batch_id", id, "participants", len(unit.Participants))

	return unit, int(size), nil
}

func (l *Ledger) List(ctx context.Context) ([]types.IngestedBatch, error) {
	docs, err := l.client.LRange(ctx, l.unitsKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.StorageFailure("couldn't read ledger", err)
	}

	units := make([]types.IngestedBatch, 0, len(docs))
	for i, doc := range docs {
		var unit types.IngestedBatch
		if err := json.Unmarshal([]byte(doc), &unit); err != nil {
			l.log.Warn("skipping unreadable ledger unit", "position", i, "error", err)
			continue
		}
		units = append(units, unit)
	}

	return units, nil
}

func (l *Ledger) Get(ctx context.Context, batchID string) (*types.IngestedBatch, error) {
	pos, err := l.client.HGet(ctx, l.indexKey(), batchID).Int64()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound(fmt.Sprintf("ingested batch %q not found", batchID))
	}
	if err != nil {
		return nil, errors.StorageFailure("couldn't look up ledger unit", err)
	}

	doc, err := l.client.LIndex(ctx, l.unitsKey(), pos).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound(fmt.Sprintf("ingested batch %q not found", batchID))
	}
	if err != nil {
		return nil, errors.StorageFailure("couldn't read ledger unit", err)
	}

	var unit types.IngestedBatch
	if err := json.Unmarshal([]byte(doc), &unit); err != nil {
		return nil, errors.StorageFailure("couldn't decode ledger unit", err)
	}

	return &unit, nil
}

// IsUpAndRunning is used by the health checker.
func (l *Ledger) IsUpAndRunning(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func encode(unit types.IngestedBatch) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(unit); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
