package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/auth"
	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/repository"
	"github.com/mamadbah2/mandi/internal/service/billing"
	"github.com/mamadbah2/mandi/internal/service/lots"
)

// LotService is the lot lifecycle used by the HTTP layer.
type LotService interface {
	Create(ctx context.Context, actor auth.Actor, input lots.LotInput) (models.Lot, error)
	Get(ctx context.Context, actor auth.Actor, id string) (models.Lot, error)
	List(ctx context.Context, actor auth.Actor, filter repository.LotFilter) ([]models.Lot, error)
	Update(ctx context.Context, actor auth.Actor, id string, input lots.LotInput) (models.Lot, error)
	Delete(ctx context.Context, actor auth.Actor, id string) error
	Invoice(ctx context.Context, actor auth.Actor, id string) (settlement.Invoice, error)
	ConfirmWeight(ctx context.Context, id string, input lots.WeightInput) (models.Lot, error)
	AddSplit(ctx context.Context, id string, input lots.SplitInput) (models.Lot, error)
	SettleFarmer(ctx context.Context, id string) (settlement.Invoice, error)
	SettleTrader(ctx context.Context, id, splitID string) (settlement.TraderCharge, error)
}

// RecordsHandler serves /api/records.
type RecordsHandler struct {
	svc    LotService
	loc    *time.Location
	logger *zap.Logger
}

// NewRecordsHandler constructs the records HTTP adapter. Date filters are
// read in loc.
func NewRecordsHandler(svc LotService, loc *time.Location, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RecordsHandler{svc: svc, loc: loc, logger: logger}
}

// Create logs a new lot.
func (h *RecordsHandler) Create(c *gin.Context) {
	var input lots.LotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	lot, err := h.svc.Create(c.Request.Context(), actorOf(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// List returns lots, optionally filtered by farmer, trader and date window.
func (h *RecordsHandler) List(c *gin.Context) {
	from, to, err := optionalRange(c, h.loc)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter := repository.LotFilter{
		FarmerID: c.Query("farmer_id"),
		TraderID: c.Query("trader_id"),
		From:     from,
		To:       to,
	}
	records, err := h.svc.List(c.Request.Context(), actorOf(c), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Get returns one lot.
func (h *RecordsHandler) Get(c *gin.Context) {
	lot, err := h.svc.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// Update edits an unsold lot.
func (h *RecordsHandler) Update(c *gin.Context) {
	var input lots.LotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	lot, err := h.svc.Update(c.Request.Context(), actorOf(c), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// Delete removes an unsold lot.
func (h *RecordsHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmWeight records the official weighbridge figure.
func (h *RecordsHandler) ConfirmWeight(c *gin.Context) {
	var input lots.WeightInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	lot, err := h.svc.ConfirmWeight(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// AddSplit records a sale against the lot.
func (h *RecordsHandler) AddSplit(c *gin.Context) {
	var input lots.SplitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	lot, err := h.svc.AddSplit(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// Invoice returns the reconciled invoice for the lot.
func (h *RecordsHandler) Invoice(c *gin.Context) {
	inv, err := h.svc.Invoice(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// InvoicePDF renders the same invoice as a PDF download.
func (h *RecordsHandler) InvoicePDF(c *gin.Context) {
	inv, err := h.svc.Invoice(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	raw, err := billing.BuildInvoicePDF(inv, h.loc)
	metrics.IncExport("pdf", err)
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("render invoice pdf: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, inv.LotID))
	c.Data(http.StatusOK, "application/pdf", raw)
}
