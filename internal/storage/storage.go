package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/catalog-bridge/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict
const uniqueViolation = "23505"

// createJobAttempts bounds inserts that lose a race with a settling live job
const createJobAttempts = 2

var (
	// ErrJobNotFound is returned when a job cannot be found in the ledger
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that is not PENDING
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in PENDING status")
)

// DuplicateIdentityError reports a live job already holding an identity
type DuplicateIdentityError struct {
	Queue    string
	Identity string
	JobID    string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("live job %s already holds identity %q on %q", e.JobID, e.Identity, e.Queue)
}

// Storage handles all job ledger operations
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// CreateJob inserts a PENDING job. If job carries an identity already held by
// a live job on the same queue, it returns *DuplicateIdentityError with the
// live job's id instead.
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	for attempt := 1; ; attempt++ {
		err := s.insertJob(ctx, job)
		if err == nil {
			return nil
		}

		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation || !job.Identity.Valid {
			return fmt.Errorf("failed to create job: %w", err)
		}

		existingID, lookupErr := s.liveJobID(ctx, job.QueueName, job.Identity.String)
		if errors.Is(lookupErr, ErrJobNotFound) && attempt < createJobAttempts {
			// the live holder settled between the insert and the lookup
			s.logger.Info("Identity released during insert, retrying",
				slog.String("queue", job.QueueName),
				slog.String("identity", job.Identity.String),
			)
			continue
		}
		if lookupErr != nil {
			return fmt.Errorf("failed to resolve duplicate identity %q: %w", job.Identity.String, lookupErr)
		}

		return &DuplicateIdentityError{
			Queue:    job.QueueName,
			Identity: job.Identity.String,
			JobID:    existingID,
		}
	}
}

func (s *Storage) insertJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, queue_name, job_name, identity,
			payload, status, max_retries, timeout_seconds,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.QueueName,
		job.JobName,
		job.Identity,
		job.Payload,
		job.Status,
		job.MaxRetries,
		job.TimeoutSeconds,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *Storage) liveJobID(ctx context.Context, queueName, identity string) (string, error) {
	query := `
		SELECT job_id
		FROM jobs
		WHERE queue_name = $1
		  AND identity = $2
		  AND status IN ($3, $4)
		LIMIT 1
	`

	var jobID string
	err := s.db.GetContext(ctx, &jobID, query, queueName, identity, model.JobStatusPending, model.JobStatusRunning)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrJobNotFound
		}
		return "", err
	}
	return jobID, nil
}

const jobColumns = `
	job_id, queue_name, job_name, identity, payload, status, worker_id,
	retry_count, max_retries, timeout_seconds, error_message, result,
	created_at, updated_at
`

// GetJobByID retrieves a job from the ledger by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job model.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// JobFilter narrows a ledger listing. Sort must be one of the Sort* keys.
type JobFilter struct {
	QueueName string
	Status    string
	Sort      string
	Page      int
	Limit     int
}

// Sort keys for ListJobs
const (
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
	SortUpdatedDesc = "updated_desc"
)

var orderClauses = map[string]string{
	SortCreatedDesc: "created_at DESC, job_id DESC",
	SortCreatedAsc:  "created_at ASC, job_id ASC",
	SortUpdatedDesc: "updated_at DESC, job_id DESC",
}

// ListJobs returns one page of jobs and the total number matching the filter
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.QueueName != "" {
		where += fmt.Sprintf(" AND queue_name = $%d", argIdx)
		args = append(args, filter.QueueName)
		argIdx++
	}

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM jobs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	order, ok := orderClauses[filter.Sort]
	if !ok {
		order = orderClauses[SortCreatedDesc]
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where +
		" ORDER BY " + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, (page-1)*filter.Limit)

	var jobs []model.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, total, nil
}

// MarkFailed moves a job straight to FAILED, releasing its identity
func (s *Storage) MarkFailed(ctx context.Context, jobID, errorMsg string) error {
	return s.UpdateJobStatus(ctx, jobID, model.JobStatusFailed, nil, errorMsg)
}

// ClaimJob attempts to claim a job using optimistic locking
// Returns full job details on success, error if job is already claimed or doesn't exist
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*model.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING ` + jobColumns

	var job model.Job
	err := s.db.GetContext(ctx, &job, query, model.JobStatusRunning, workerID, jobID, model.JobStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("job_name", job.JobName),
	)

	return &job, nil
}

// UpdateJobStatus updates the job status and optionally sets result/error
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID, status string, result map[string]interface{}, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1::text,
			result = $2,
			error_message = NULLIF($3, ''),
			completed_at = CASE
				WHEN $1::text IN ($4::text, $5::text) THEN NOW()
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE job_id = $6
	`

	var resultArg interface{}
	if result != nil {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultArg = resultJSON
	}

	_, err := s.db.ExecContext(ctx, query, status, resultArg, errorMsg, model.JobStatusCompleted, model.JobStatusFailed, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}

// ReleaseForRetry returns a RUNNING job to PENDING and bumps its retry count
func (s *Storage) ReleaseForRetry(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    error_message = $2,
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, model.JobStatusPending, errorMsg, jobID, model.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to release job for retry: %w", err)
	}

	s.logger.Info("Job released for retry",
		slog.String("job_id", jobID),
	)

	return nil
}

// ReleaseJob returns a RUNNING job to PENDING without counting a retry
func (s *Storage) ReleaseJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	_, err := s.db.ExecContext(ctx, query, model.JobStatusPending, jobID, model.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}

	s.logger.Info("Job released",
		slog.String("job_id", jobID),
	)

	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a running job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, model.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}
