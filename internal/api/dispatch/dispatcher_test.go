package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/cuongbtq/catalog-bridge/internal/api/domain"
	"github.com/cuongbtq/catalog-bridge/internal/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryQueue dedups live jobs by identity the way the broker ledger does
type memoryQueue struct {
	name string

	mu       sync.Mutex
	jobs     []queue.Job
	live     map[string]string
	ctxErrs  []error
	deadline []bool
	addErr   error
}

func newMemoryQueue(name string) *memoryQueue {
	return &memoryQueue{name: name, live: map[string]string{}}
}

func (q *memoryQueue) Name() string { return q.name }

func (q *memoryQueue) Add(ctx context.Context, job queue.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ctxErrs = append(q.ctxErrs, ctx.Err())
	_, hasDeadline := ctx.Deadline()
	q.deadline = append(q.deadline, hasDeadline)

	if q.addErr != nil {
		return "", q.addErr
	}
	if job.Identity != "" {
		if existing, ok := q.live[job.Identity]; ok {
			return "", &queue.DuplicateJobError{Queue: q.name, Identity: job.Identity, JobID: existing}
		}
	}

	id := uuid.NewString()
	if job.Identity != "" {
		q.live[job.Identity] = id
	}
	q.jobs = append(q.jobs, job)
	return id, nil
}

func registryWith(queues ...*memoryQueue) *queue.Registry {
	byName := map[string]*memoryQueue{}
	for _, q := range queues {
		byName[q.name] = q
	}
	opener := queue.OpenerFunc(func(ctx context.Context, name string) (queue.Queue, error) {
		q, ok := byName[name]
		if !ok {
			return nil, errors.New("not configured")
		}
		return q, nil
	})
	return queue.NewRegistry(true, opener, discardLogger())
}

func TestDispatcher_QueueDisabled(t *testing.T) {
	opener := queue.OpenerFunc(func(ctx context.Context, name string) (queue.Queue, error) {
		t.Fatalf("broker must not be touched while disabled, got open for %q", name)
		return nil, nil
	})
	d := New(queue.NewRegistry(false, opener, discardLogger()), Config{}, discardLogger())

	ack, err := d.SyncFullCatalog(context.Background(), "10.0.0.1")

	assert.Nil(t, ack)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindQueueDisabled, appErr.Kind)
	assert.Equal(t, apperr.CodeQueueDisabled, appErr.Code)
	assert.ErrorIs(t, err, queue.ErrQueueDisabled)
}

func TestDispatcher_QueueUnavailable(t *testing.T) {
	brokerDown := errors.New("dial tcp: connection refused")
	opener := queue.OpenerFunc(func(ctx context.Context, name string) (queue.Queue, error) {
		return nil, brokerDown
	})
	d := New(queue.NewRegistry(true, opener, discardLogger()), Config{}, discardLogger())

	ack, err := d.SyncCatalogSegment(context.Background(), "electronics", "10.0.0.1")

	assert.Nil(t, ack)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindQueueUnavailable, appErr.Kind)
	assert.Equal(t, apperr.CodeQueueUnavailable, appErr.Code)
	assert.ErrorIs(t, err, brokerDown)
	assert.False(t, errors.Is(err, queue.ErrQueueDisabled))
}

func TestDispatcher_Dispatch(t *testing.T) {
	catalog := newMemoryQueue(domain.QueueCatalog)
	d := New(registryWith(catalog), Config{}, discardLogger())
	fixed := time.Date(2026, 10, 17, 8, 30, 0, 0, time.FixedZone("KST", 9*3600))
	d.now = func() time.Time { return fixed }

	ack, err := d.Dispatch(context.Background(), Request{
		JobName:     domain.JobSyncCatalogSegment,
		QueueName:   domain.QueueCatalog,
		Payload:     map[string]any{"segment": "electronics"},
		FailureCode: domain.CodeCatalogSegmentDispatchFailed,
		TriggeredBy: domain.TriggerManualAPI,
		RequestedBy: "10.0.0.7",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, ack.JobID)
	assert.Equal(t, domain.QueueCatalog, ack.QueueName)
	assert.Equal(t, domain.JobSyncCatalogSegment, ack.JobName)
	assert.Equal(t, fixed.UTC(), ack.SubmittedAt)
	assert.Equal(t, time.UTC, ack.SubmittedAt.Location())

	require.Len(t, catalog.jobs, 1)
	job := catalog.jobs[0]
	assert.Equal(t, domain.JobSyncCatalogSegment, job.Name)
	assert.Empty(t, job.Identity)
	assert.Equal(t, map[string]any{
		"segment":        "electronics",
		FieldTriggeredBy: domain.TriggerManualAPI,
		FieldRequestedBy: "10.0.0.7",
	}, job.Payload)
}

func TestDispatcher_DoesNotMutateCallerPayload(t *testing.T) {
	catalog := newMemoryQueue(domain.QueueCatalog)
	d := New(registryWith(catalog), Config{}, discardLogger())
	payload := map[string]any{"catalogType": "full"}

	_, err := d.Dispatch(context.Background(), Request{
		JobName:   domain.JobSyncFullCatalog,
		QueueName: domain.QueueCatalog,
		Payload:   payload,
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"catalogType": "full"}, payload)
}

func TestDispatcher_SubmissionFailure(t *testing.T) {
	products := newMemoryQueue(domain.QueueProductSync)
	cause := errors.New("channel/connection is not open")
	products.addErr = cause
	d := New(registryWith(products), Config{ProductResync: PerRequest}, discardLogger())

	ack, err := d.ResyncProduct(context.Background(), "MP-1001", "10.0.0.1")

	assert.Nil(t, ack)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindJobSubmissionFailed, appErr.Kind)
	assert.Equal(t, domain.CodeProductResyncDispatchFailed, appErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, appErr.Message, cause.Error())
}

func TestDispatcher_BrokerLostAfterOpenIsUnavailable(t *testing.T) {
	catalog := newMemoryQueue(domain.QueueCatalog)
	cause := errors.New("dial tcp: connection refused")
	catalog.addErr = &queue.UnavailableError{Queue: domain.QueueCatalog, Err: cause}
	d := New(registryWith(catalog), Config{}, discardLogger())

	ack, err := d.SyncFullCatalog(context.Background(), "10.0.0.1")

	assert.Nil(t, ack)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindQueueUnavailable, appErr.Kind)
	assert.Equal(t, apperr.CodeQueueUnavailable, appErr.Code)
	assert.ErrorIs(t, err, cause)
}

func TestDispatcher_FailureCodesPerOperation(t *testing.T) {
	catalog := newMemoryQueue(domain.QueueCatalog)
	catalog.addErr = errors.New("publish timeout")
	products := newMemoryQueue(domain.QueueProductSync)
	products.addErr = errors.New("publish timeout")
	d := New(registryWith(catalog, products), Config{}, discardLogger())
	ctx := context.Background()

	tests := []struct {
		name     string
		dispatch func() error
		code     string
	}{
		{
			name:     "full catalog",
			dispatch: func() error { _, err := d.SyncFullCatalog(ctx, "ip"); return err },
			code:     domain.CodeCatalogSyncDispatchFailed,
		},
		{
			name:     "segment",
			dispatch: func() error { _, err := d.SyncCatalogSegment(ctx, "toys", "ip"); return err },
			code:     domain.CodeCatalogSegmentDispatchFailed,
		},
		{
			name:     "product",
			dispatch: func() error { _, err := d.ResyncProduct(ctx, "MP-1", "ip"); return err },
			code:     domain.CodeProductResyncDispatchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr, ok := apperr.As(tt.dispatch())
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestDispatcher_DuplicateIsAcknowledged(t *testing.T) {
	products := newMemoryQueue(domain.QueueProductSync)
	d := New(registryWith(products), Config{ProductResync: PerTarget}, discardLogger())

	first, err := d.ResyncProduct(context.Background(), "MP-1001", "10.0.0.1")
	require.NoError(t, err)
	second, err := d.ResyncProduct(context.Background(), "MP-1001", "10.0.0.2")
	require.NoError(t, err)

	assert.Equal(t, first.JobID, second.JobID)
	assert.Len(t, products.jobs, 1)
}

func TestDispatcher_ConcurrentPerRequestResyncsAreDistinct(t *testing.T) {
	products := newMemoryQueue(domain.QueueProductSync)
	d := New(registryWith(products), Config{ProductResync: PerRequest}, discardLogger())

	const callers = 2
	acks := make([]*Acknowledgment, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acks[i], errs[i] = d.ResyncProduct(context.Background(), "MP-1001", "10.0.0.1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.NotEmpty(t, acks[i].JobID)
	}
	assert.NotEqual(t, acks[0].JobID, acks[1].JobID)

	require.Len(t, products.jobs, callers)
	assert.NotEqual(t, products.jobs[0].Identity, products.jobs[1].Identity)
	for _, job := range products.jobs {
		assert.True(t, strings.HasPrefix(job.Identity, "resync-product:MP-1001:"))
		assert.Equal(t, "MP-1001", job.Payload["targetEntityId"])
	}
}

func TestDispatcher_SubmissionSurvivesClientCancel(t *testing.T) {
	catalog := newMemoryQueue(domain.QueueCatalog)
	d := New(registryWith(catalog), Config{SubmitTimeout: 5 * time.Second}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack, err := d.SyncFullCatalog(ctx, "10.0.0.1")

	require.NoError(t, err)
	assert.NotEmpty(t, ack.JobID)
	require.Len(t, catalog.ctxErrs, 1)
	assert.NoError(t, catalog.ctxErrs[0])
	assert.True(t, catalog.deadline[0])
}

func TestDispatcher_NoSubmitTimeout(t *testing.T) {
	catalog := newMemoryQueue(domain.QueueCatalog)
	d := New(registryWith(catalog), Config{}, discardLogger())

	_, err := d.SyncFullCatalog(context.Background(), "10.0.0.1")

	require.NoError(t, err)
	assert.False(t, catalog.deadline[0])
}
