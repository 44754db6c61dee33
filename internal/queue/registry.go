package queue

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Opener initializes the broker queue behind a logical name
type Opener interface {
	Open(ctx context.Context, name string) (Queue, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, name string) (Queue, error)

func (f OpenerFunc) Open(ctx context.Context, name string) (Queue, error) {
	return f(ctx, name)
}

// Registry caches one Queue per logical name. Open failures are not cached,
// so a broker that comes back is picked up by the next lookup.
type Registry struct {
	enabled bool
	opener  Opener
	logger  *slog.Logger

	mu     sync.RWMutex
	queues map[string]Queue
	group  singleflight.Group
}

// NewRegistry creates a registry. When enabled is false the opener is never used.
func NewRegistry(enabled bool, opener Opener, logger *slog.Logger) *Registry {
	return &Registry{
		enabled: enabled,
		opener:  opener,
		logger:  logger,
		queues:  make(map[string]Queue),
	}
}

// Enabled reports whether the queue system is administratively on
func (r *Registry) Enabled() bool {
	return r.enabled
}

// Get returns the queue for name, opening it on first use. Concurrent first
// lookups of the same name share a single open.
func (r *Registry) Get(ctx context.Context, name string) (Queue, error) {
	if !r.enabled {
		return nil, ErrQueueDisabled
	}

	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if ok {
		return q, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.queues[name]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// shared by every waiter, so no single caller's cancellation applies
		opened, err := r.opener.Open(context.WithoutCancel(ctx), name)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.queues[name] = opened
		r.mu.Unlock()

		r.logger.Info("Queue initialized",
			slog.String("queue", name),
		)
		return opened, nil
	})
	if err != nil {
		r.logger.Error("Failed to initialize queue",
			slog.String("queue", name),
			slog.Any("error", err),
		)
		return nil, &UnavailableError{Queue: name, Err: err}
	}

	return v.(Queue), nil
}
