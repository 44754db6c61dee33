// Package queue resolves logical queue names to broker-backed job queues.
//
// A Registry owns one lazily opened handle per logical name for the life of
// the process. Callers borrow handles for a single submission and must tell
// "queue system disabled" (ErrQueueDisabled) apart from "queue broken"
// (*UnavailableError).
package queue

import (
	"context"
	"errors"
	"fmt"
)

// ErrQueueDisabled is returned for every lookup while the broker is administratively off
var ErrQueueDisabled = errors.New("queue system disabled")

// Job is a unit of work handed to the broker
type Job struct {
	Name    string
	Payload map[string]any
	// Identity is the broker dedup key. Empty means every submission is a new job.
	Identity string
}

// Queue is a named, initialized job queue
type Queue interface {
	Name() string
	// Add submits job and returns the broker-assigned job id. A live job with
	// the same identity yields *DuplicateJobError carrying that job's id. A
	// backend that cannot be reached yields *UnavailableError.
	Add(ctx context.Context, job Job) (string, error)
}

// UnavailableError reports a queue that is enabled but cannot be reached or initialized
type UnavailableError struct {
	Queue string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("queue %q unavailable: %v", e.Queue, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// DuplicateJobError reports that a live job already holds the submitted identity
type DuplicateJobError struct {
	Queue    string
	Identity string
	JobID    string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job with identity %q already enqueued on %q as %s", e.Identity, e.Queue, e.JobID)
}
