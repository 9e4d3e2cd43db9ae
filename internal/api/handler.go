package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SaleService is the part of service.SaleService the routes use
type SaleService interface {
	CreateSale(ctx context.Context, req *service.CreateSaleRequest) (*service.SaleDetails, error)
	UpdateQuote(ctx context.Context, saleID string, req *service.UpdateQuoteRequest) (*service.SaleDetails, error)
	ConvertQuote(ctx context.Context, saleID string, req *service.PaymentRequest) (*service.SaleDetails, error)
	CancelSale(ctx context.Context, saleID string) error
	GetSale(ctx context.Context, saleID string) (*service.SaleDetails, error)
	ListSales(ctx context.Context, status string, limit int) ([]models.Sale, error)
	DeleteQuote(ctx context.Context, saleID string) error
}

type PaymentService interface {
	MarkPaid(ctx context.Context, paymentID string) (*models.SalePayment, error)
}

type ReturnService interface {
	CreateReturn(ctx context.Context, req *service.CreateReturnRequest) (*models.Return, error)
}

type TimelineService interface {
	CustomerTimeline(ctx context.Context, customerID string, groupByDay bool) (*service.CustomerTimeline, error)
	LogInteraction(ctx context.Context, customerID string, req *service.LogInteractionRequest) (*models.Interaction, error)
}

type LedgerService interface {
	ListEntries(ctx context.Context, entryType, entryStatus string, limit int) ([]models.FinancialEntry, error)
	PayEntry(ctx context.Context, entryID string) (*models.FinancialEntry, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the services behind the routes
type Services struct {
	Sales    SaleService
	Payments PaymentService
	Returns  ReturnService
	Timeline TimelineService
	Ledger   LedgerService
}

// Handler contains HTTP handlers
type Handler struct {
	services Services
	probes   map[string]Pinger
	location *time.Location
	now      func() time.Time
}

// NewHandler creates a new HTTP handler. loc is the zone "today" is taken in
// for schedule previews.
func NewHandler(services Services, probes map[string]Pinger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		services: services,
		probes:   probes,
		location: loc,
		now:      time.Now,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/pricing/quote", h.priceQuote)
		v1.POST("/schedules/preview", h.previewSchedule)

		v1.POST("/sales", h.createSale)
		v1.GET("/sales", h.listSales)
		v1.GET("/sales/:id", h.getSale)
		v1.PUT("/sales/:id", h.updateQuote)
		v1.DELETE("/sales/:id", h.deleteQuote)
		v1.POST("/sales/:id/convert", h.convertQuote)
		v1.PUT("/sales/:id/cancel", h.cancelSale)

		v1.POST("/payments/:id/pay", h.markPaid)
		v1.POST("/returns", h.createReturn)

		v1.GET("/financial-entries", h.listFinancialEntries)
		v1.POST("/financial-entries/:id/pay", h.payFinancialEntry)

		v1.GET("/customers/:id/timeline", h.customerTimeline)
		v1.POST("/customers/:id/interactions", h.logInteraction)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.probes))
	ready := true
	for name, probe := range h.probes {
		if err := probe.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// createSale handles quote and sale creation
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if !bind(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.services.Sales.CreateSale(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to create sale", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) getSale(c *gin.Context) {
	resp, err := h.services.Sales.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "Failed to get sale", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// listSales lists sales newest first, ?status= narrows to one status
func (h *Handler) listSales(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	sales, err := h.services.Sales.ListSales(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		writeError(c, "Failed to list sales", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) deleteQuote(c *gin.Context) {
	if err := h.services.Sales.DeleteQuote(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "Failed to delete quote", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateQuote(c *gin.Context) {
	var req service.UpdateQuoteRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.services.Sales.UpdateQuote(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, "Failed to update quote", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) convertQuote(c *gin.Context) {
	var req service.PaymentRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.services.Sales.ConvertQuote(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, "Failed to convert quote", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) cancelSale(c *gin.Context) {
	saleID := c.Param("id")
	if err := h.services.Sales.CancelSale(c.Request.Context(), saleID); err != nil {
		writeError(c, "Failed to cancel sale", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     saleID,
		"status": models.SaleStatusCancelled,
	})
}

func (h *Handler) markPaid(c *gin.Context) {
	payment, err := h.services.Payments.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "Failed to mark payment paid", err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) createReturn(c *gin.Context) {
	var req service.CreateReturnRequest
	if !bind(c, &req) {
		return
	}

	ret, err := h.services.Returns.CreateReturn(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to create return", err)
		return
	}
	c.JSON(http.StatusCreated, ret)
}

func (h *Handler) listFinancialEntries(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	entries, err := h.services.Ledger.ListEntries(c.Request.Context(), c.Query("type"), c.Query("status"), limit)
	if err != nil {
		writeError(c, "Failed to list financial entries", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) payFinancialEntry(c *gin.Context) {
	entry, err := h.services.Ledger.PayEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "Failed to pay financial entry", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// customerTimeline serves the activity feed, grouped by day with ?group=day
func (h *Handler) customerTimeline(c *gin.Context) {
	groupByDay := c.Query("group") == "day"

	timeline, err := h.services.Timeline.CustomerTimeline(c.Request.Context(), c.Param("id"), groupByDay)
	if err != nil {
		writeError(c, "Failed to build timeline", err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}

func (h *Handler) logInteraction(c *gin.Context) {
	var req service.LogInteractionRequest
	if !bind(c, &req) {
		return
	}

	interaction, err := h.services.Timeline.LogInteraction(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, "Failed to log interaction", err)
		return
	}
	c.JSON(http.StatusCreated, interaction)
}

// queryLimit reads ?limit=, zero when absent
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid limit",
			"details": fmt.Sprintf("limit must be a non-negative integer, got %q", raw),
		})
		return 0, false
	}
	return limit, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}
