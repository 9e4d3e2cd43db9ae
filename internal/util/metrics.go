package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of quotes and sales created",
	}, []string{"status"})

	QuotesConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_converted_total",
		Help: "Total number of quotes converted into sales",
	})

	SalesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_cancelled_total",
		Help: "Total number of cancelled sales",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of sales that could not be committed",
	}, []string{"reason"})

	PricingFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_failures_total",
		Help: "Total number of rejected pricing or scheduling inputs",
	}, []string{"reason"})

	InstallmentsScheduledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installments_scheduled_total",
		Help: "Total number of installments scheduled",
	}, []string{"method"})

	PaymentsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_paid_total",
		Help: "Total number of installments marked as paid",
	})

	ReturnsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_created_total",
		Help: "Total number of returns registered",
	}, []string{"resolution"})

	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Total number of financial entries written",
	}, []string{"type"})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of stock reservation for a sale",
		Buckets: prometheus.DefBuckets,
	})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	TimelineBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_build_latency_seconds",
		Help:    "Latency of customer timeline fetch and aggregation",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
