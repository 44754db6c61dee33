package dispatch

import (
	"context"

	"github.com/cuongbtq/catalog-bridge/internal/api/domain"
)

// SyncFullCatalog queues a full catalog refresh. Concurrent refreshes are allowed.
func (d *Dispatcher) SyncFullCatalog(ctx context.Context, requestedBy string) (*Acknowledgment, error) {
	return d.Dispatch(ctx, Request{
		JobName:     domain.JobSyncFullCatalog,
		QueueName:   domain.QueueCatalog,
		Payload:     map[string]any{"catalogType": "full"},
		Identity:    Unbounded.Identity(domain.JobSyncFullCatalog, "", d.now()),
		FailureCode: domain.CodeCatalogSyncDispatchFailed,
		TriggeredBy: domain.TriggerManualAPI,
		RequestedBy: requestedBy,
	})
}

// SyncCatalogSegment queues a refresh of one catalog segment
func (d *Dispatcher) SyncCatalogSegment(ctx context.Context, segment, requestedBy string) (*Acknowledgment, error) {
	return d.Dispatch(ctx, Request{
		JobName:   domain.JobSyncCatalogSegment,
		QueueName: domain.QueueCatalog,
		Payload: map[string]any{
			"catalogType": "segment",
			"segment":     segment,
		},
		Identity:    Unbounded.Identity(domain.JobSyncCatalogSegment, segment, d.now()),
		FailureCode: domain.CodeCatalogSegmentDispatchFailed,
		TriggeredBy: domain.TriggerManualAPI,
		RequestedBy: requestedBy,
	})
}

// ResyncProduct queues a resync of one marketplace product. Its identity
// follows the configured product resync policy.
func (d *Dispatcher) ResyncProduct(ctx context.Context, productID, requestedBy string) (*Acknowledgment, error) {
	return d.Dispatch(ctx, Request{
		JobName:     domain.JobResyncProduct,
		QueueName:   domain.QueueProductSync,
		Payload:     map[string]any{"targetEntityId": productID},
		Identity:    d.config.ProductResync.Identity(domain.JobResyncProduct, productID, d.now()),
		FailureCode: domain.CodeProductResyncDispatchFailed,
		TriggeredBy: domain.TriggerManualAPI,
		RequestedBy: requestedBy,
	})
}
