package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/service/billing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BillingService builds the committee reports.
type BillingService interface {
	Report(ctx context.Context, from, to time.Time) (billing.Report, error)
	TraderStatement(ctx context.Context, traderID string, from, to time.Time) (billing.TraderStatement, error)
	ExportToSheet(ctx context.Context, from, to time.Time) (int, error)
	Location() *time.Location
}

// FinanceHandler serves /api/finance.
type FinanceHandler struct {
	lots    LotService
	billing BillingService
	logger  *zap.Logger
	now     func() time.Time
}

// NewFinanceHandler constructs the finance HTTP adapter.
func NewFinanceHandler(lots LotService, billingSvc BillingService, logger *zap.Logger) *FinanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinanceHandler{lots: lots, billing: billingSvc, logger: logger, now: time.Now}
}

// FarmerPayment confirms the farmer was paid for every sale on the lot.
func (h *FinanceHandler) FarmerPayment(c *gin.Context) {
	inv, err := h.lots.SettleFarmer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// TraderPayment confirms the trader paid for one split.
func (h *FinanceHandler) TraderPayment(c *gin.Context) {
	charge, err := h.lots.SettleTrader(c.Request.Context(), c.Param("id"), c.Param("splitId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}

// Billing returns the report for ?from=&to= (inclusive days, default today).
func (h *FinanceHandler) Billing(c *gin.Context) {
	report, ok := h.report(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

// BillingCSV downloads the report as CSV.
func (h *FinanceHandler) BillingCSV(c *gin.Context) {
	report, ok := h.report(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := billing.WriteReportCSV(&buf, report)
	metrics.IncExport("csv", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportName(report, "csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// BillingXLSX downloads the report as a workbook.
func (h *FinanceHandler) BillingXLSX(c *gin.Context) {
	report, ok := h.report(c)
	if !ok {
		return
	}
	raw, err := billing.BuildReportXLSX(report)
	metrics.IncExport("xlsx", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportName(report, "xlsx")))
	c.Data(http.StatusOK, xlsxContentType, raw)
}

// BillingSheet appends the report rows to the billing spreadsheet.
func (h *FinanceHandler) BillingSheet(c *gin.Context) {
	from, to, err := dateRange(c, h.billing.Location(), h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	rows, err := h.billing.ExportToSheet(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// TraderStatement lists one trader's purchases and balance.
func (h *FinanceHandler) TraderStatement(c *gin.Context) {
	from, to, err := optionalRange(c, h.billing.Location())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	stmt, err := h.billing.TraderStatement(c.Request.Context(), c.Param("traderId"), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stmt)
}

func (h *FinanceHandler) report(c *gin.Context) (billing.Report, bool) {
	from, to, err := dateRange(c, h.billing.Location(), h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return billing.Report{}, false
	}
	report, err := h.billing.Report(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return billing.Report{}, false
	}
	return report, true
}

func exportName(report billing.Report, ext string) string {
	last := report.To.AddDate(0, 0, -1)
	return fmt.Sprintf("billing-%s-%s.%s", report.From.Format(dateLayout), last.Format(dateLayout), ext)
}
