package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lab_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// InvoiceTransitionsTotal counts invoice mutations; result is ok, rejected, conflict or error
	InvoiceTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_invoice_transitions_total",
			Help: "Invoice create/update/payment/refund attempts by outcome",
		},
		[]string{"action", "result"},
	)

	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_audit_write_failures_total",
			Help: "Audit events that could not be written",
		},
	)

	CashBookStreamFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_cashbook_stream_failures_total",
			Help: "Cash book source streams that failed during aggregation",
		},
		[]string{"stream"},
	)

	CashBookAggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lab_cashbook_aggregation_duration_seconds",
			Help:    "Time spent building a cash book",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	CashBookCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_cashbook_cache_hits_total",
			Help: "Cash book requests served from cache",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_notifications_total",
			Help: "Invoice notifications by outcome",
		},
		[]string{"result"},
	)
)
