package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/config"
	"github.com/cuongbtq/catalog-bridge/internal/model"
	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/cuongbtq/catalog-bridge/shared/rabbitmq"
	"github.com/google/uuid"
)

// Envelope is the message body published for every job. Workers load the
// rest of the job from the ledger.
type Envelope struct {
	JobID   string `json:"job_id"`
	JobName string `json:"job_name"`
	Queue   string `json:"queue"`
}

// Publisher is the broker connection used to declare queues and publish jobs
type Publisher interface {
	DeclareQueue(name string) error
	Publish(ctx context.Context, routingKey string, msg rabbitmq.Message) error
	IsConnected() bool
	Close() error
}

// Ledger records jobs so that live identities stay unique per queue
type Ledger interface {
	CreateJob(ctx context.Context, job *model.Job) error
	MarkFailed(ctx context.Context, jobID, errorMsg string) error
}

// ConnectFunc dials the broker
type ConnectFunc func() (Publisher, error)

// Broker opens RabbitMQ-backed queues for the logical names it is configured with.
// The connection is dialed on first use and redialed once it is found closed.
type Broker struct {
	definitions map[string]config.QueueDefinition
	connect     ConnectFunc
	ledger      Ledger
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	publisher Publisher
}

// NewBroker creates a broker for the given logical queue definitions
func NewBroker(definitions map[string]config.QueueDefinition, connect ConnectFunc, ledger Ledger, logger *slog.Logger) *Broker {
	return &Broker{
		definitions: definitions,
		connect:     connect,
		ledger:      ledger,
		logger:      logger,
		now:         time.Now,
	}
}

// Open implements Opener. It fails when name is not configured or the
// broker cannot be reached.
func (b *Broker) Open(ctx context.Context, name string) (Queue, error) {
	def, ok := b.definitions[name]
	if !ok {
		return nil, fmt.Errorf("queue %q is not configured", name)
	}

	pub, err := b.currentPublisher()
	if err != nil {
		return nil, err
	}

	if err := pub.DeclareQueue(def.Name); err != nil {
		return nil, err
	}

	return &brokerQueue{
		broker:     b,
		logical:    name,
		definition: def,
	}, nil
}

// Close releases the broker connection, if one was ever dialed
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publisher == nil {
		return nil
	}
	err := b.publisher.Close()
	b.publisher = nil
	return err
}

func (b *Broker) currentPublisher() (Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publisher != nil && b.publisher.IsConnected() {
		return b.publisher, nil
	}

	if b.publisher != nil {
		b.logger.Warn("RabbitMQ connection lost, redialing")
		_ = b.publisher.Close()
		b.publisher = nil
	}

	pub, err := b.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	b.publisher = pub
	return pub, nil
}

type brokerQueue struct {
	broker     *Broker
	logical    string
	definition config.QueueDefinition
}

func (q *brokerQueue) Name() string {
	return q.logical
}

// Add records the job in the ledger and publishes its envelope. A broker
// that cannot be reached is reported as *UnavailableError before anything is
// written. If the publish fails the ledger row is failed so its identity is
// released.
func (q *brokerQueue) Add(ctx context.Context, job Job) (string, error) {
	b := q.broker

	pub, err := q.connected()
	if err != nil {
		return "", &UnavailableError{Queue: q.logical, Err: err}
	}

	payload := job.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := b.now().UTC()
	row := &model.Job{
		JobID:          uuid.NewString(),
		QueueName:      q.logical,
		JobName:        job.Name,
		Identity:       sql.NullString{String: job.Identity, Valid: job.Identity != ""},
		Payload:        string(payloadJSON),
		Status:         model.JobStatusPending,
		MaxRetries:     q.definition.MaxRetries,
		TimeoutSeconds: q.definition.TimeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := b.ledger.CreateJob(ctx, row); err != nil {
		var dupErr *storage.DuplicateIdentityError
		if errors.As(err, &dupErr) {
			return "", &DuplicateJobError{Queue: q.logical, Identity: dupErr.Identity, JobID: dupErr.JobID}
		}
		return "", err
	}

	if err := q.publish(ctx, pub, row); err != nil {
		if markErr := b.ledger.MarkFailed(context.WithoutCancel(ctx), row.JobID, err.Error()); markErr != nil {
			b.logger.Error("Failed to mark unpublished job as failed",
				slog.String("job_id", row.JobID),
				slog.Any("error", markErr),
			)
		}
		return "", err
	}

	b.logger.Info("Job enqueued",
		slog.String("job_id", row.JobID),
		slog.String("job_name", row.JobName),
		slog.String("queue", row.QueueName),
	)

	return row.JobID, nil
}

// connected returns a live publisher with the queue declared on it
func (q *brokerQueue) connected() (Publisher, error) {
	pub, err := q.broker.currentPublisher()
	if err != nil {
		return nil, err
	}

	// no-op unless the connection was redialed since Open
	if err := pub.DeclareQueue(q.definition.Name); err != nil {
		return nil, err
	}

	return pub, nil
}

func (q *brokerQueue) publish(ctx context.Context, pub Publisher, row *model.Job) error {
	body, err := json.Marshal(Envelope{
		JobID:   row.JobID,
		JobName: row.JobName,
		Queue:   row.QueueName,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return pub.Publish(ctx, q.definition.Name, rabbitmq.Message{
		ID:          row.JobID,
		Type:        row.JobName,
		ContentType: "application/json",
		Body:        body,
	})
}
