package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/catalog-bridge/internal/api/auth"
	"github.com/cuongbtq/catalog-bridge/internal/api/dispatch"
	"github.com/cuongbtq/catalog-bridge/internal/api/validation"
	"github.com/cuongbtq/catalog-bridge/internal/model"
	"github.com/cuongbtq/catalog-bridge/internal/pricing"
	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/gin-gonic/gin"
)

// JobReader reads ledger rows
type JobReader interface {
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, int, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Dispatcher *dispatch.Dispatcher
	Jobs       JobReader
	Gate       *validation.Gate
	Pricing    *pricing.Converter
	// Database is optional; when set /health reports its reachability
	Database HealthChecker
}

// requestedBy identifies the caller for job payloads
func requestedBy(c *gin.Context) string {
	if authCtx, ok := auth.FromContext(c); ok && authCtx.ClientIdentity != "" {
		return authCtx.ClientIdentity
	}
	return c.ClientIP()
}
