package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of completed sales",
	})

	SalesRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_refunded_total",
		Help: "Total number of refunded sales",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sale attempts",
	}, []string{"reason"})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Total number of stock ledger movements",
	}, []string{"kind"})

	WalletMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_movements_total",
		Help: "Total number of wallet ledger movements",
	}, []string{"kind"})

	WalletOperationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_failed_total",
		Help: "Total number of rejected wallet debits",
	}, []string{"reason"})

	LoyaltyUnitsCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_units_credited_total",
		Help: "Total number of lalita units credited to wallets",
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of low stock alerts emitted",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification delivery failures",
	})

	SaleProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_processing_latency_seconds",
		Help:    "Latency of sale creation including ledger writes",
		Buckets: prometheus.DefBuckets,
	})

	RefundProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refund_processing_latency_seconds",
		Help:    "Latency of refund processing",
		Buckets: prometheus.DefBuckets,
	})

	TxRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tx_retries_total",
		Help: "Total number of serialization conflict retries",
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
