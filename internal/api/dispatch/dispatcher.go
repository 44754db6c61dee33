// Package dispatch turns admitted requests into queued jobs.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/cuongbtq/catalog-bridge/internal/queue"
)

// Payload keys added to every job
const (
	FieldTriggeredBy = "triggeredBy"
	FieldRequestedBy = "requestedBy"
)

// QueueResolver looks up an initialized queue by logical name
type QueueResolver interface {
	Get(ctx context.Context, name string) (queue.Queue, error)
}

// Request describes one job submission
type Request struct {
	JobName   string
	QueueName string
	Payload   map[string]any
	// Identity is passed to the broker as the dedup key. Empty allows duplicates.
	Identity string
	// FailureCode is reported when the broker rejects this submission
	FailureCode string
	TriggeredBy string
	RequestedBy string
}

// Acknowledgment is returned to the caller once the broker accepted the job
type Acknowledgment struct {
	JobID       string
	QueueName   string
	JobName     string
	SubmittedAt time.Time
}

// Config holds dispatcher settings
type Config struct {
	// SubmitTimeout bounds a single broker submission. Zero means no bound.
	SubmitTimeout time.Duration
	// ProductResync is the identity policy used for single product resyncs
	ProductResync IdentityPolicy
}

// Dispatcher submits jobs to queues resolved through a QueueResolver
type Dispatcher struct {
	queues QueueResolver
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Dispatcher
func New(queues QueueResolver, config Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queues: queues,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch resolves the queue and submits the job once. A duplicate identity
// reported by the broker is an acknowledgment of the already queued job.
//
// The submission is detached from ctx cancellation so that a client hanging
// up cannot abandon a half-submitted job.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Acknowledgment, error) {
	submitCtx := context.WithoutCancel(ctx)
	if d.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(submitCtx, d.config.SubmitTimeout)
		defer cancel()
	}

	q, err := d.queues.Get(submitCtx, req.QueueName)
	if err != nil {
		if errors.Is(err, queue.ErrQueueDisabled) {
			d.logger.Warn("Job not dispatched, queue system disabled",
				slog.String("queue", req.QueueName),
				slog.String("job_name", req.JobName),
			)
			return nil, apperr.QueueDisabled(req.QueueName, err)
		}
		return nil, apperr.QueueUnavailable(req.QueueName, err)
	}

	payload := make(map[string]any, len(req.Payload)+2)
	for k, v := range req.Payload {
		payload[k] = v
	}
	payload[FieldTriggeredBy] = req.TriggeredBy
	payload[FieldRequestedBy] = req.RequestedBy

	jobID, err := q.Add(submitCtx, queue.Job{
		Name:     req.JobName,
		Payload:  payload,
		Identity: req.Identity,
	})
	if err != nil {
		var unavailableErr *queue.UnavailableError
		if errors.As(err, &unavailableErr) {
			d.logger.Error("Job not dispatched, queue unavailable",
				slog.String("queue", req.QueueName),
				slog.String("job_name", req.JobName),
				slog.Any("error", err),
			)
			return nil, apperr.QueueUnavailable(req.QueueName, err)
		}

		var dupErr *queue.DuplicateJobError
		if !errors.As(err, &dupErr) {
			d.logger.Error("Failed to submit job",
				slog.String("queue", req.QueueName),
				slog.String("job_name", req.JobName),
				slog.String("code", req.FailureCode),
				slog.Any("error", err),
			)
			return nil, apperr.JobSubmissionFailed(req.FailureCode, err)
		}

		d.logger.Info("Job already queued under identity",
			slog.String("queue", req.QueueName),
			slog.String("job_name", req.JobName),
			slog.String("identity", req.Identity),
			slog.String("job_id", dupErr.JobID),
		)
		jobID = dupErr.JobID
	}

	d.logger.Info("Job dispatched",
		slog.String("job_id", jobID),
		slog.String("queue", req.QueueName),
		slog.String("job_name", req.JobName),
		slog.String("requested_by", req.RequestedBy),
	)

	return &Acknowledgment{
		JobID:       jobID,
		QueueName:   req.QueueName,
		JobName:     req.JobName,
		SubmittedAt: d.now().UTC(),
	}, nil
}
