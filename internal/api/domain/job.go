package domain

// Logical queue names, resolved to broker queues through configuration
const (
	QueueCatalog     = "catalog"
	QueueProductSync = "product-sync"
)

// Job names
const (
	JobSyncFullCatalog    = "sync-full-catalog"
	JobSyncCatalogSegment = "sync-catalog-segment"
	JobResyncProduct      = "resync-product"
)

// Dispatch failure codes, one per operation so operators can alert on each
const (
	CodeCatalogSyncDispatchFailed    = "CATALOG_SYNC_DISPATCH_FAILED"
	CodeCatalogSegmentDispatchFailed = "CATALOG_SEGMENT_DISPATCH_FAILED"
	CodeProductResyncDispatchFailed  = "PRODUCT_RESYNC_DISPATCH_FAILED"
)

// Values for the triggeredBy payload tag
const (
	TriggerManualAPI = "manual-api"
)
