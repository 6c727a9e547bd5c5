package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of sales committed",
	})

	SalesDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_duplicate_total",
		Help: "Total number of sale requests answered from an idempotency key",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sales",
	}, []string{"reason"})

	SaleCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_create_latency_seconds",
		Help:    "Latency of the sale creation transaction",
		Buckets: prometheus.DefBuckets,
	})

	SaleStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_status_updates_total",
		Help: "Total number of sale status updates",
	}, []string{"status"})

	IncomeEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "income_entries_total",
		Help: "Total number of income entries appended to the ledger",
	})

	StockRestocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_restocks_total",
		Help: "Total number of stock receipts",
	})

	StockAlertEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_alert_events_total",
		Help: "Total number of events applied to the stock alert index",
	}, []string{"event_type"})

	TxRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_tx_retries_total",
		Help: "Total number of retried database transactions",
	}, []string{"class"})

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
