package api

import (
	"net/http"
	"time"

	"sales-service/internal/domain"
	"sales-service/internal/money"
	"sales-service/internal/pricing"
	"sales-service/internal/schedule"
	"sales-service/internal/status"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type quoteItem struct {
	ProductID   string          `json:"product_id" binding:"required"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type priceQuoteRequest struct {
	Items    []quoteItem `json:"items" binding:"required,min=1,dive"`
	Discount struct {
		Kind  string          `json:"kind"`
		Value decimal.Decimal `json:"value"`
	} `json:"discount"`
	Freight decimal.Decimal `json:"freight"`
}

type priceQuoteResponse struct {
	Subtotal       int64  `json:"subtotal"`
	Discount       int64  `json:"discount"`
	Freight        int64  `json:"freight"`
	Total          int64  `json:"total"`
	TotalFormatted string `json:"total_formatted"`
}

// priceQuote prices a draft without storing anything
func (h *Handler) priceQuote(c *gin.Context) {
	var req priceQuoteRequest
	if !bind(c, &req) {
		return
	}

	kind, err := pricing.ParseDiscountKind(req.Discount.Kind)
	if err != nil {
		writeError(c, "Invalid discount", err)
		return
	}

	draft := pricing.NewDraft()
	for _, item := range req.Items {
		draft = draft.WithItem(pricing.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	breakdown, err := draft.
		WithDiscount(pricing.Discount{Kind: kind, Value: req.Discount.Value}).
		WithFreight(req.Freight).
		Price()
	if err != nil {
		writeError(c, "Failed to price quote", err)
		return
	}

	c.JSON(http.StatusOK, priceQuoteResponse{
		Subtotal:       breakdown.Subtotal,
		Discount:       breakdown.Discount,
		Freight:        breakdown.Freight,
		Total:          breakdown.Total,
		TotalFormatted: money.Format(breakdown.Total),
	})
}

type schedulePreviewRequest struct {
	Method        string          `json:"method" binding:"required"`
	Installments  int             `json:"installments"`
	Total         decimal.Decimal `json:"total"`
	DueDates      []string        `json:"due_dates"`
	AutoFillDates bool            `json:"auto_fill_dates"`
	FirstDueDate  string          `json:"first_due_date"`
}

type previewPayment struct {
	Number  int                  `json:"number"`
	Amount  int64                `json:"amount"`
	DueDate string               `json:"due_date,omitempty"`
	Status  domain.PaymentStatus `json:"status"`
}

// previewSchedule splits a total into the payments a sale would commit
func (h *Handler) previewSchedule(c *gin.Context) {
	var req schedulePreviewRequest
	if !bind(c, &req) {
		return
	}

	method, err := domain.ParseMethod(req.Method)
	if err != nil {
		writeError(c, "Invalid payment method", err)
		return
	}
	total, err := money.ToMinorUnits(req.Total)
	if err != nil {
		writeError(c, "Invalid total", err)
		return
	}

	installments := req.Installments
	if installments == 0 {
		installments = 1
	}

	dates := make([]time.Time, len(req.DueDates))
	for i, raw := range req.DueDates {
		if dates[i], err = status.ParseDueDate(raw); err != nil {
			writeError(c, "Invalid due date", err)
			return
		}
	}
	first, err := status.ParseDueDate(req.FirstDueDate)
	if err != nil {
		writeError(c, "Invalid first due date", err)
		return
	}

	today := schedule.Day(h.now().In(h.location))
	if method.ManualDates() && req.AutoFillDates {
		dates = schedule.AutoFill(schedule.Resize(dates, installments), today)
	}

	payments, err := schedule.Build(schedule.Plan{
		Method:       method,
		Installments: installments,
		Total:        total,
		DueDates:     dates,
		FirstDue:     first,
		Today:        today,
	})
	if err != nil {
		writeError(c, "Failed to build schedule", err)
		return
	}

	out := make([]previewPayment, len(payments))
	for i, p := range payments {
		out[i] = previewPayment{Number: p.Number, Amount: p.Amount, Status: p.Status}
		if !p.DueDate.IsZero() {
			out[i].DueDate = p.DueDate.Format(time.DateOnly)
		}
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}
