package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/cuongbtq/catalog-bridge/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.jobsChan:
			w.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.String("queue", msg.Queue),
			)

			w.handle(ctx, msg)
		}
	}
}

// handle processes one message and settles its delivery
func (w *Worker) handle(ctx context.Context, msg *domain.JobMessage) {
	err := w.processJob(ctx, msg)
	if err == nil {
		w.ack(msg.DeliveryTag, msg.JobID)
		return
	}

	w.logger.Error("Job processing failed",
		slog.String("job_id", msg.JobID),
		slog.String("error", err.Error()),
	)
	w.nack(msg.DeliveryTag, shouldRequeueJob(err), msg.JobID)
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	switch {
	case errors.Is(err, storage.ErrJobAlreadyClaimed),
		errors.Is(err, domain.ErrMaxRetriesExceeded),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrUnknownJob):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
