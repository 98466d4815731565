package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const (
	// QueueBatchIngested feeds the reconciliation job with new ledger units.
	QueueBatchIngested QueueName = "batch-ingested"
)

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

// Queue owns the RabbitMQ connection and re-establishes it when the broker
// drops it. Publish fails fast while no connection is open.
type Queue struct {
	config   *Config
	conn     *amqp.Connection
	declared map[QueueName]bool
	mu       sync.Mutex
	log      *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config:   config,
		declared: make(map[QueueName]bool),
		log:      slog.With("component", "queue"),
	}
}

// Start keeps the connection alive until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("Starting the queue manager.")
	defer q.log.Info("Stopping the queue manager.")

	defer q.close()

	return q.reconnectLoop(ctx)
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	q.log.Debug("started reconnect loop.")
	defer q.log.Debug("reconnect loop exited.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		q.log.Info("connecting to Rabbit MQ...")
		conn, err := q.connect()
		if err != nil {
			q.log.Error("connection to Rabbit MQ failed", "error", err)
			if !q.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		q.log.Info("connected to Rabbit MQ...")

		connErrors := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-connErrors:
			q.log.Error("rabbit mq connection closed", "error", err)
		}

		q.mu.Lock()
		q.conn = nil
		q.declared = make(map[QueueName]bool)
		q.mu.Unlock()

		if !q.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (q *Queue) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(q.config.ReconnectInterval):
		return true
	}
}

func (q *Queue) connect() (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.conn = conn
	q.mu.Unlock()

	return conn, nil
}

// Connect opens the connection once, without the reconnect loop. It suits
// short-lived callers that publish a few messages and then Close.
func (q *Queue) Connect() error {
	if _, err := q.connect(); err != nil {
		return fmt.Errorf("couldn't connect to rabbit mq: %w", err)
	}
	return nil
}

// Close drops the connection opened by Connect.
func (q *Queue) Close() {
	q.close()
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil {
		q.log.Debug("closing the connection")
		_ = q.conn.Close()
		q.conn = nil
	}
}

// IsUpAndRunning is used by the health checker.
func (q *Queue) IsUpAndRunning(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("connection is not open")
	}
	return nil
}

// Publish sends a persistent JSON message to the named durable queue through
// the default exchange.
func (q *Queue) Publish(ctx context.Context, queueName QueueName, messageID string, message []byte) error {
	q.mu.Lock()
	conn := q.conn
	declared := q.declared[queueName]
	q.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("connection is not open yet")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("couldn't open channel: %w", err)
	}
	defer ch.Close()

	if !declared {
		if _, err := ch.QueueDeclare(string(queueName), true, false, false, false, nil); err != nil {
			return fmt.Errorf("couldn't declare queue %s: %w", queueName, err)
		}

		q.mu.Lock()
		q.declared[queueName] = true
		q.mu.Unlock()
	}

	err = ch.PublishWithContext(ctx,
		"",                // exchange, empty means default (direct to queue)
		string(queueName), // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         message,
		},
	)
	if err != nil {
		q.log.Error("Failed to publish", "queue", queueName, "message_id", messageID, "error", err)
		return err
	}

	return nil
}
