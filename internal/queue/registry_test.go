package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	name string
}

func (q *stubQueue) Name() string { return q.name }

func (q *stubQueue) Add(context.Context, Job) (string, error) { return "stub-id", nil }

func TestRegistry_Disabled(t *testing.T) {
	var calls atomic.Int32
	opener := OpenerFunc(func(ctx context.Context, name string) (Queue, error) {
		calls.Add(1)
		return &stubQueue{name: name}, nil
	})
	registry := NewRegistry(false, opener, discardLogger())

	for _, name := range []string{"catalog", "product-sync", "unknown"} {
		q, err := registry.Get(context.Background(), name)
		assert.Nil(t, q)
		assert.ErrorIs(t, err, ErrQueueDisabled)
	}

	assert.False(t, registry.Enabled())
	assert.Zero(t, calls.Load())
}

func TestRegistry_CachesOpenedQueue(t *testing.T) {
	var calls atomic.Int32
	opener := OpenerFunc(func(ctx context.Context, name string) (Queue, error) {
		calls.Add(1)
		return &stubQueue{name: name}, nil
	})
	registry := NewRegistry(true, opener, discardLogger())

	first, err := registry.Get(context.Background(), "catalog")
	require.NoError(t, err)
	second, err := registry.Get(context.Background(), "catalog")
	require.NoError(t, err)
	other, err := registry.Get(context.Background(), "product-sync")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "product-sync", other.Name())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegistry_UnavailableIsNotCached(t *testing.T) {
	brokerDown := errors.New("connection refused")
	var calls atomic.Int32
	opener := OpenerFunc(func(ctx context.Context, name string) (Queue, error) {
		if calls.Add(1) == 1 {
			return nil, brokerDown
		}
		return &stubQueue{name: name}, nil
	})
	registry := NewRegistry(true, opener, discardLogger())

	q, err := registry.Get(context.Background(), "catalog")
	assert.Nil(t, q)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "catalog", unavailable.Queue)
	assert.ErrorIs(t, err, brokerDown)
	assert.NotErrorIs(t, err, ErrQueueDisabled)

	q, err = registry.Get(context.Background(), "catalog")
	require.NoError(t, err)
	assert.Equal(t, "catalog", q.Name())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegistry_ConcurrentFirstAccessOpensOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	opener := OpenerFunc(func(ctx context.Context, name string) (Queue, error) {
		calls.Add(1)
		<-release
		return &stubQueue{name: name}, nil
	})
	registry := NewRegistry(true, opener, discardLogger())

	const callers = 16
	results := make([]Queue, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := registry.Get(context.Background(), "product-sync")
			assert.NoError(t, err)
			results[i] = q
		}(i)
	}

	// let every caller reach the shared open before it completes
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, q := range results {
		assert.Same(t, results[0], q)
	}
}

func TestRegistry_OpenIgnoresCallerCancellation(t *testing.T) {
	opener := OpenerFunc(func(ctx context.Context, name string) (Queue, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ctx.Deadline(); ok {
			return nil, errors.New("open inherited a caller deadline")
		}
		return &stubQueue{name: name}, nil
	})
	registry := NewRegistry(true, opener, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	cancel()

	q, err := registry.Get(ctx, "catalog")

	require.NoError(t, err)
	assert.Equal(t, "catalog", q.Name())
}
