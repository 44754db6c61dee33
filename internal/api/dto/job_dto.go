package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/model"
)

// AcceptedResponse is returned with 202 once a job is queued
type AcceptedResponse struct {
	Message   string `json:"message"`
	JobID     string `json:"jobId"`
	QueueName string `json:"queueName"`
	JobName   string `json:"jobName"`
	Timestamp string `json:"timestamp"`
}

// JobSummary is the storefront-visible view of a ledger row
type JobSummary struct {
	JobID        string `json:"jobId"`
	QueueName    string `json:"queueName"`
	JobName      string `json:"jobName"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retryCount"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// JobDTO is the operator view of a ledger row
type JobDTO struct {
	JobSummary
	Identity   string          `json:"identity,omitempty"`
	WorkerID   string          `json:"workerId,omitempty"`
	MaxRetries int             `json:"maxRetries"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// ListJobsResponse is one page of sync jobs
type ListJobsResponse struct {
	Jobs  []JobSummary `json:"jobs"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

// NewJobSummary converts a ledger row into its public summary
func NewJobSummary(job model.Job) JobSummary {
	return JobSummary{
		JobID:        job.JobID,
		QueueName:    job.QueueName,
		JobName:      job.JobName,
		Status:       job.Status,
		RetryCount:   job.RetryCount,
		ErrorMessage: job.ErrorMessage.String,
		CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewJobDTO converts a ledger row into the operator view
func NewJobDTO(job model.Job) JobDTO {
	dto := JobDTO{
		JobSummary: NewJobSummary(job),
		Identity:   job.Identity.String,
		WorkerID:   job.WorkerID.String,
		MaxRetries: job.MaxRetries,
	}
	if job.Payload != "" {
		dto.Payload = json.RawMessage(job.Payload)
	}
	if job.Result.Valid && job.Result.String != "" {
		dto.Result = json.RawMessage(job.Result.String)
	}
	return dto
}
