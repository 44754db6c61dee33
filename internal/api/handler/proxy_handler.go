package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/cuongbtq/catalog-bridge/internal/api/auth"
	"github.com/cuongbtq/catalog-bridge/internal/api/dto"
	"github.com/cuongbtq/catalog-bridge/internal/api/respond"
	"github.com/cuongbtq/catalog-bridge/internal/api/validation"
	"github.com/cuongbtq/catalog-bridge/internal/pricing"
	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/gin-gonic/gin"
)

// ProxyHandler serves storefront proxy requests. Input is read only from the
// signature-verified parameter set.
type ProxyHandler struct {
	logger  *slog.Logger
	gate    *validation.Gate
	pricing *pricing.Converter
	jobs    JobReader
}

// NewProxyHandler creates a new ProxyHandler instance
func NewProxyHandler(deps *Dependencies) *ProxyHandler {
	return &ProxyHandler{
		logger:  deps.Logger,
		gate:    deps.Gate,
		pricing: deps.Pricing,
		jobs:    deps.Jobs,
	}
}

// PricePreview handles GET /proxy/price-preview
func (h *ProxyHandler) PricePreview(c *gin.Context) {
	values, err := h.gate.Check(validation.PricePreview, auth.VerifiedParams(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	quote := h.pricing.Preview(values.Decimal("krwPrice"), values.Decimal("fee"))

	c.JSON(http.StatusOK, dto.PricePreviewResponse{
		KRWPrice: quote.KRWPrice.String(),
		Fee:      quote.Fee.String(),
		Currency: quote.Currency,
		Price:    quote.Price.StringFixed(h.pricing.Scale()),
	})
}

// ListSyncJobs handles GET /proxy/sync-jobs
func (h *ProxyHandler) ListSyncJobs(c *gin.Context) {
	values, err := h.gate.Check(validation.SyncJobList, auth.VerifiedParams(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	filter := storage.JobFilter{
		QueueName: values.String("queue"),
		Status:    values.String("status"),
		Sort:      values.String("sort"),
		Page:      int(values.Int("page")),
		Limit:     int(values.Int("limit")),
	}

	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respond.Fail(c, apperr.Internal(err))
		return
	}

	summaries := make([]dto.JobSummary, len(jobs))
	for i, job := range jobs {
		summaries[i] = dto.NewJobSummary(job)
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:  summaries,
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	})
}
