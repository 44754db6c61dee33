package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/api/dispatch"
	"github.com/cuongbtq/catalog-bridge/internal/api/dto"
	"github.com/cuongbtq/catalog-bridge/internal/api/respond"
	"github.com/cuongbtq/catalog-bridge/internal/api/validation"
	"github.com/gin-gonic/gin"
)

// SyncHandler triggers catalog and product synchronization jobs for operators
type SyncHandler struct {
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	gate       *validation.Gate
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(deps *Dependencies) *SyncHandler {
	return &SyncHandler{
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		gate:       deps.Gate,
	}
}

// SyncCatalog handles POST /api/v1/sync/catalog
func (h *SyncHandler) SyncCatalog(c *gin.Context) {
	ack, err := h.dispatcher.SyncFullCatalog(c.Request.Context(), requestedBy(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	accepted(c, "Full catalog sync queued", ack)
}

// SyncCatalogSegment handles POST /api/v1/sync/catalog/segments/:segment
func (h *SyncHandler) SyncCatalogSegment(c *gin.Context) {
	values, err := h.gate.Check(validation.CatalogSegment, map[string]string{
		"segment": c.Param("segment"),
	})
	if err != nil {
		respond.Fail(c, err)
		return
	}

	ack, err := h.dispatcher.SyncCatalogSegment(c.Request.Context(), values.String("segment"), requestedBy(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	accepted(c, "Catalog segment sync queued", ack)
}

// ResyncProduct handles POST /api/v1/sync/products/:productId
func (h *SyncHandler) ResyncProduct(c *gin.Context) {
	values, err := h.gate.Check(validation.ProductResync, map[string]string{
		"productId": c.Param("productId"),
	})
	if err != nil {
		respond.Fail(c, err)
		return
	}

	ack, err := h.dispatcher.ResyncProduct(c.Request.Context(), values.String("productId"), requestedBy(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	accepted(c, "Product resync queued", ack)
}

func accepted(c *gin.Context, message string, ack *dispatch.Acknowledgment) {
	c.JSON(http.StatusAccepted, dto.AcceptedResponse{
		Message:   message,
		JobID:     ack.JobID,
		QueueName: ack.QueueName,
		JobName:   ack.JobName,
		Timestamp: ack.SubmittedAt.Format(time.RFC3339),
	})
}
