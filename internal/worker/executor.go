package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/model"
)

// Executor runs the business logic behind one job name
type Executor interface {
	Execute(ctx context.Context, job *model.Job, payload map[string]interface{}) (map[string]interface{}, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, job *model.Job, payload map[string]interface{}) (map[string]interface{}, error)

func (f ExecutorFunc) Execute(ctx context.Context, job *model.Job, payload map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, job, payload)
}

// Executors maps job names to executors
type Executors struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewExecutors creates an empty executor set
func NewExecutors() *Executors {
	return &Executors{executors: make(map[string]Executor)}
}

// Register binds jobName to executor, replacing any earlier binding
func (e *Executors) Register(jobName string, executor Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[jobName] = executor
}

// Lookup returns the executor bound to jobName
func (e *Executors) Lookup(jobName string) (Executor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	executor, ok := e.executors[jobName]
	return executor, ok
}

// LoggingExecutor records the job and reports success. It stands in for the
// marketplace sync logic, which lives outside this service.
func LoggingExecutor(logger *slog.Logger) Executor {
	return ExecutorFunc(func(ctx context.Context, job *model.Job, payload map[string]interface{}) (map[string]interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger.Info("Sync job received",
			slog.String("job_id", job.JobID),
			slog.String("job_name", job.JobName),
			slog.Any("payload", payload),
		)

		return map[string]interface{}{
			"status":      "success",
			"jobName":     job.JobName,
			"processedAt": time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
}
