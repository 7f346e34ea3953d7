package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	opsTotal    *prometheus.CounterVec
	opFailures  *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	loansActive prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide lending metric set, registering it on
// first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of lending operations executed by method.",
			}, []string{"method"}),
			opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operation_failures_total",
				Help: "Count of failed lending operations by method.",
			}, []string{"method"}),
			opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "lending_operation_duration_seconds",
				Help:    "Lending operation latency by method.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
			loansActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_loans_total",
				Help: "Total number of loans originated by the pool.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.opsTotal,
			lendingRegistry.opFailures,
			lendingRegistry.opDuration,
			lendingRegistry.loansActive,
		)
	})
	return lendingRegistry
}

// ObserveOperation records one operation outcome and its latency.
func (m *LendingMetrics) ObserveOperation(method string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(method).Inc()
	m.opDuration.WithLabelValues(method).Observe(seconds)
	if err != nil {
		m.opFailures.WithLabelValues(method).Inc()
	}
}

// SetLoansTotal publishes the pool's cumulative loan counter.
func (m *LendingMetrics) SetLoansTotal(total uint64) {
	if m == nil {
		return
	}
	m.loansActive.Set(float64(total))
}
