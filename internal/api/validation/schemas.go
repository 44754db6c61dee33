package validation

// Sort keys accepted by the sync job listing
const (
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
	SortUpdatedDesc = "updated_desc"
)

// PricePreview guards the storefront price preview: the marketplace price in
// KRW must be positive, the optional fee non-negative.
var PricePreview = Schema{
	Name: "price-preview",
	Rules: []Rule{
		{Field: "krwPrice", Kind: Decimal, Required: true, Constraint: "gt=0"},
		{Field: "fee", Kind: Decimal, Default: "0", Constraint: "gte=0"},
	},
}

// SyncJobList guards the storefront sync status listing
var SyncJobList = Schema{
	Name: "sync-job-list",
	Rules: []Rule{
		{Field: "page", Kind: Integer, Default: "1", Constraint: "min=1"},
		{Field: "limit", Kind: Integer, Default: "20", Constraint: "min=1,max=100"},
		{Field: "sort", Kind: String, Default: SortCreatedDesc, Constraint: "oneof=" + SortCreatedDesc + " " + SortCreatedAsc + " " + SortUpdatedDesc},
		{Field: "status", Kind: String, Constraint: "oneof=PENDING RUNNING COMPLETED FAILED"},
		{Field: "queue", Kind: String, Constraint: "identifier,max=64"},
	},
}

// CatalogSegment guards the operator segment refresh trigger
var CatalogSegment = Schema{
	Name: "catalog-segment",
	Rules: []Rule{
		{Field: "segment", Kind: String, Required: true, Constraint: "identifier,max=64"},
	},
}

// ProductResync guards the operator single product resync trigger
var ProductResync = Schema{
	Name: "product-resync",
	Rules: []Rule{
		{Field: "productId", Kind: String, Required: true, Constraint: "identifier,max=64"},
	},
}
