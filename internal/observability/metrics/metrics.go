package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "settlement_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	calculateTotal   *prometheus.CounterVec
	calculateLatency *prometheus.HistogramVec

	approvalTotal   *prometheus.CounterVec
	approvalLatency *prometheus.HistogramVec

	batchGenerateTotal   *prometheus.CounterVec
	batchGenerateLatency *prometheus.HistogramVec
	batchCustomersTotal  *prometheus.CounterVec

	validationTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		calculateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculate_total",
				Help: "Total settlement calculations by result",
			},
			[]string{"result"},
		)
		calculateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculate_latency_seconds",
				Help:    "Settlement calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		approvalTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "approval_total",
				Help: "Total lifecycle transitions by operation and result",
			},
			[]string{"operation", "result"},
		)
		approvalLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "approval_latency_seconds",
				Help:    "Lifecycle transition latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)

		batchGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_generate_total",
				Help: "Total batch generation runs by result",
			},
			[]string{"result"},
		)
		batchGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_generate_latency_seconds",
				Help:    "Batch generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		batchCustomersTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_customers_total",
				Help: "Per-customer batch outcomes by result",
			},
			[]string{"result"},
		)

		validationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validation_total",
				Help: "Total record validations by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			calculateTotal,
			calculateLatency,
			approvalTotal,
			approvalLatency,
			batchGenerateTotal,
			batchGenerateLatency,
			batchCustomersTotal,
			validationTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveCalculate records one calculation's duration and result.
func ObserveCalculate(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if calculateTotal != nil {
		calculateTotal.WithLabelValues(result).Inc()
	}
	if calculateLatency != nil {
		calculateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveApproval records one lifecycle transition.
func ObserveApproval(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if approvalTotal != nil {
		approvalTotal.WithLabelValues(operation, result).Inc()
	}
	if approvalLatency != nil {
		approvalLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// ObserveBatchGenerate records one batch run.
func ObserveBatchGenerate(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if batchGenerateTotal != nil {
		batchGenerateTotal.WithLabelValues(result).Inc()
	}
	if batchGenerateLatency != nil {
		batchGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBatchCustomer counts one per-customer batch outcome.
func IncBatchCustomer(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if batchCustomersTotal != nil {
		batchCustomersTotal.WithLabelValues(result).Inc()
	}
}

// IncValidation counts one validation outcome.
func IncValidation(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if validationTotal != nil {
		validationTotal.WithLabelValues(outcome).Inc()
	}
}
