package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/model"
	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/cuongbtq/catalog-bridge/internal/worker/domain"
)

// settleTimeout bounds ledger writes that record a job's outcome
const settleTimeout = 10 * time.Second

// settleContext outlives worker shutdown so a claimed job is never left RUNNING
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// processJob claims the job, runs its executor under a timeout with
// heartbeats and records the outcome. The returned error drives the
// ack/nack decision.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, storage.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		// the row is still PENDING, so another delivery can claim it
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	var payload map[string]interface{}
	if job.Payload != "" {
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			w.fail(ctx, job, fmt.Sprintf("Invalid payload JSON: %s", err.Error()))
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	executor, ok := w.executors.Lookup(job.JobName)
	if !ok {
		w.fail(ctx, job, fmt.Sprintf("No executor for job %q", job.JobName))
		return fmt.Errorf("%w: %s", domain.ErrUnknownJob, job.JobName)
	}

	jobTimeout := w.jobTimeout
	if job.TimeoutSeconds > 0 {
		jobTimeout = time.Duration(job.TimeoutSeconds) * time.Second
	}

	jobCtx := ctx
	if jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, jobTimeout)
		defer cancel()
	}

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	w.logger.Info("Executing job",
		slog.String("job_id", job.JobID),
		slog.String("job_name", job.JobName),
	)

	result, err := executor.Execute(jobCtx, job, payload)
	if err != nil {
		if ctx.Err() != nil {
			return w.handleInterrupted(ctx, job, err)
		}
		return w.handleFailure(ctx, job, err)
	}

	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	if updateErr := w.storage.UpdateJobStatus(settleCtx, job.JobID, model.JobStatusCompleted, result, ""); updateErr != nil {
		// the work is done; acking avoids running it twice
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.JobID),
			slog.String("error", updateErr.Error()),
		)
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.JobID),
		slog.String("job_name", job.JobName),
	)

	return nil
}

// handleFailure returns the job to PENDING while retries remain, otherwise fails it
func (w *Worker) handleFailure(ctx context.Context, job *model.Job, execErr error) error {
	w.logger.Error("Job execution failed",
		slog.String("job_id", job.JobID),
		slog.String("job_name", job.JobName),
		slog.String("error", execErr.Error()),
	)

	if job.RetryCount < job.MaxRetries {
		settleCtx, cancel := settleContext(ctx)
		defer cancel()

		if err := w.storage.ReleaseForRetry(settleCtx, job.JobID, execErr.Error()); err != nil {
			w.logger.Error("Failed to release job for retry",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			w.fail(ctx, job, execErr.Error())
			return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, execErr)
		}

		w.logger.Info("Job will be retried",
			slog.String("job_id", job.JobID),
			slog.Int("retry_count", job.RetryCount+1),
			slog.Int("max_retries", job.MaxRetries),
		)
		return domain.NewRetryableError(fmt.Errorf("job execution failed: %w", execErr))
	}

	w.logger.Warn("Job exceeded max retries",
		slog.String("job_id", job.JobID),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
	)
	w.fail(ctx, job, execErr.Error())
	return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, execErr)
}

// handleInterrupted hands a job cut short by shutdown back to the queue
// without spending one of its retries
func (w *Worker) handleInterrupted(ctx context.Context, job *model.Job, execErr error) error {
	w.logger.Warn("Job interrupted by shutdown, releasing",
		slog.String("job_id", job.JobID),
		slog.String("job_name", job.JobName),
		slog.String("error", execErr.Error()),
	)

	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	if err := w.storage.ReleaseJob(settleCtx, job.JobID); err != nil {
		w.logger.Error("Failed to release interrupted job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	return domain.NewRetryableError(fmt.Errorf("job interrupted: %w", execErr))
}

func (w *Worker) fail(ctx context.Context, job *model.Job, reason string) {
	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	if err := w.storage.UpdateJobStatus(settleCtx, job.JobID, model.JobStatusFailed, nil, reason); err != nil {
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
