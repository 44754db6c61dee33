package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/cuongbtq/catalog-bridge/internal/api/dto"
	"github.com/cuongbtq/catalog-bridge/internal/api/respond"
	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler exposes the job ledger to operators
type JobHandler struct {
	logger *slog.Logger
	jobs   JobReader
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		respond.Fail(c, apperr.ValidationFailed([]apperr.Violation{
			{Field: "job_id", Message: "must be a valid UUID", Value: jobID},
		}))
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			respond.Fail(c, apperr.NotFound(apperr.CodeJobNotFound, "Job not found"))
			return
		}
		respond.Fail(c, apperr.Internal(err))
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(*job))
}
