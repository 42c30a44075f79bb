package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/application/services"
	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
)

// ReportingHandlers contains the versioned reporting endpoints consumed
// by the admin dashboard.
type ReportingHandlers struct {
	reportingService *services.ReportingService
	logger           *logging.ChanneledLogger
}

// NewReportingHandlers creates reporting handlers with their dependencies.
func NewReportingHandlers(reportingService *services.ReportingService, logger *logging.ChanneledLogger) *ReportingHandlers {
	return &ReportingHandlers{
		reportingService: reportingService,
		logger:           logger,
	}
}

func (h *ReportingHandlers) resolveWindow(c *gin.Context) (tracking.Window, bool) {
	window, err := h.reportingService.ResolveWindow(services.WindowParams{
		From:     c.Query("from"),
		To:       c.Query("to"),
		StartAt:  c.Query("start_at"),
		EndAt:    c.Query("end_at"),
		Timezone: c.Query("tz"),
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return tracking.Window{}, false
	}
	return window, true
}

func limitQuery(c *gin.Context, fallback, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}

// GetKPIs handles GET /api/v1/reporting/kpis.
func (h *ReportingHandlers) GetKPIs(c *gin.Context) {
	window, ok := h.resolveWindow(c)
	if !ok {
		return
	}
	report, err := h.reportingService.KPIs(c.Request.Context(), window,
		c.Query("product_id"), c.Query("catalog_id"), limitQuery(c, 10, 100))
	if err != nil {
		h.logger.Reporting().Error("KPI report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetTopProducts handles GET /api/v1/reporting/top-products.
func (h *ReportingHandlers) GetTopProducts(c *gin.Context) {
	window, ok := h.resolveWindow(c)
	if !ok {
		return
	}
	report, err := h.reportingService.TopProducts(c.Request.Context(), window, limitQuery(c, 10, 100))
	if err != nil {
		h.logger.Reporting().Error("Top products report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetTopRequestedProducts handles GET /api/v1/reporting/top-requested-products.
func (h *ReportingHandlers) GetTopRequestedProducts(c *gin.Context) {
	window, ok := h.resolveWindow(c)
	if !ok {
		return
	}
	report, err := h.reportingService.TopRequestedProducts(c.Request.Context(), window, limitQuery(c, 10, 100))
	if err != nil {
		h.logger.Reporting().Error("Top requested products report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetUTMReferrer handles GET /api/v1/reporting/utm-referrer.
func (h *ReportingHandlers) GetUTMReferrer(c *gin.Context) {
	window, ok := h.resolveWindow(c)
	if !ok {
		return
	}
	report, err := h.reportingService.UTMReferrer(c.Request.Context(), window, limitQuery(c, 25, 200))
	if err != nil {
		h.logger.Reporting().Error("UTM/referrer report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetFunnel handles GET /api/v1/reporting/funnel.
func (h *ReportingHandlers) GetFunnel(c *gin.Context) {
	window, ok := h.resolveWindow(c)
	if !ok {
		return
	}
	report, err := h.reportingService.Funnel(c.Request.Context(), window)
	if err != nil {
		h.logger.Reporting().Error("Funnel report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}
