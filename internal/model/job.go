package model

import (
	"database/sql"
	"time"
)

// Job status values stored in the ledger
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Job is a ledger row for one admitted background job
type Job struct {
	JobID          string         `db:"job_id"`
	QueueName      string         `db:"queue_name"`
	JobName        string         `db:"job_name"`
	Identity       sql.NullString `db:"identity"`
	Payload        string         `db:"payload"`
	Status         string         `db:"status"`
	WorkerID       sql.NullString `db:"worker_id"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	TimeoutSeconds int            `db:"timeout_seconds"`
	ErrorMessage   sql.NullString `db:"error_message"`
	Result         sql.NullString `db:"result"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// Live reports whether the job still holds its identity
func (j *Job) Live() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}
