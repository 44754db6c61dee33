package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/model"
	"github.com/cuongbtq/catalog-bridge/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultHeartbeatInterval = 30 * time.Second

// Broker is the consuming side of the RabbitMQ client
type Broker interface {
	SetQos(prefetchCount int) error
	Consume(queueName, consumerTag string) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// JobStore is the ledger as seen by the worker
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID, status string, result map[string]interface{}, errorMsg string) error
	ReleaseForRetry(ctx context.Context, jobID, errorMsg string) error
	ReleaseJob(ctx context.Context, jobID string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Broker            Broker
	Storage           JobStore
	Executors         *Executors
	Queues            []string
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	// WorkerID defaults to a random id
	WorkerID string
}

// Worker consumes job deliveries from every configured queue and runs them on a bounded pool
type Worker struct {
	logger            *slog.Logger
	broker            Broker
	storage           JobStore
	executors         *Executors
	queues            []string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	workerID          string

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	return &Worker{
		logger:            cfg.Logger,
		broker:            cfg.Broker,
		storage:           cfg.Storage,
		executors:         cfg.Executors,
		queues:            cfg.Queues,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		workerID:          workerID,
		jobsChan:          make(chan *domain.JobMessage, concurrency),
		stopChan:          make(chan struct{}),
	}
}

// ID returns the identifier recorded on claimed jobs
func (w *Worker) ID() string {
	return w.workerID
}

// Start subscribes to every queue, spawns the pool and blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Any("queues", w.queues),
	)

	streams, err := w.setupConsumers()
	if err != nil {
		return fmt.Errorf("failed to set up consumers: %w", err)
	}

	w.spawnWorkerPool(ctx)

	for queueName, deliveries := range streams {
		w.wg.Add(1)
		go func(queueName string, deliveries <-chan amqp.Delivery) {
			defer w.wg.Done()
			w.startMessageDispatcher(ctx, queueName, deliveries)
		}(queueName, deliveries)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
