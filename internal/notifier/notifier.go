package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/metrics"
	"github.com/Stellouuuuu/mojaloop-pension/internal/queue"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/google/uuid"
)

const (
	PatternBatchIngested = "batch-ingested"
)

type Config struct {
	Queue queue.QueueName
	// Timeout bounds a single publish; zero disables it.
	Timeout time.Duration
}

type Publisher interface {
	Publish(ctx context.Context, queueName queue.QueueName, messageID string, message []byte) error
}

// Notifier tells the reconciliation job about every unit appended to the
// ingestion ledger.
type Notifier struct {
	config    *Config
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

type BatchIngestedData struct {
	BatchID      string    `json:"batch_id"`
	Date         time.Time `json:"date"`
	SourceFile   string    `json:"source_file,omitempty"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	Participants int       `json:"participants"`
	Valid        int       `json:"valid"`
	Refused      int       `json:"refused"`
}

type BatchIngestedNotification struct {
	Pattern string            `json:"pattern"`
	Data    BatchIngestedData `json:"data"`
}

func New(config *Config, publisher Publisher, m *metrics.Metrics) *Notifier {
	return &Notifier{
		config:    config,
		publisher: publisher,
		metrics:   m,
		log:       slog.With("component", "notifier"),
	}
}

func (n *Notifier) BatchIngested(ctx context.Context, unit types.IngestedBatch) (err error) {
	defer func() { n.metrics.ObserveNotification(err) }()

	valid, refused := unit.Counts()
	payload := BatchIngestedNotification{
		Pattern: PatternBatchIngested,
		Data: BatchIngestedData{
			BatchID:      unit.BatchID,
			Date:         unit.Date.Time,
			SourceFile:   unit.SourceFile,
			Fingerprint:  unit.Fingerprint,
			Participants: len(unit.Participants),
			Valid:        valid,
			Refused:      refused,
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("error marshaling JSON", "payload", payload, "error", err)
		return err
	}

	if n.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	messageID := uuid.NewString()

	n.log.Debug("Sending notification", "message_id", messageID, "payload", string(jsonData))

	if err := n.publisher.Publish(ctx, n.queueName(), messageID, jsonData); err != nil {
		n.log.Error("couldn't enqueue message", "batch_id", unit.BatchID, "error", err)
		return err
	}

	return nil
}

func (n *Notifier) queueName() queue.QueueName {
	if n.config.Queue == "" {
		return queue.QueueBatchIngested
	}
	return n.config.Queue
}
