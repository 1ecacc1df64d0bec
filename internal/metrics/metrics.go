// Package metrics provides the centralized Prometheus metrics registry for the race escrow.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "race_escrow"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of escrow operations by operation and outcome",
	}, []string{"op", "outcome"})
	PrizesPaidLamportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prizes_paid_lamports_total",
		Help:      "Total lamports paid out to race winners",
	})
	AuditRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_runs_total",
		Help:      "Total number of escrow audit passes by result",
	}, []string{"result"})
)

// Gauge metrics, refreshed by the escrow audit
var (
	RacesByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "races",
		Help:      "Number of race accounts by status",
	}, []string{"status"})
	EscrowLockedLamports = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "escrow_locked_lamports",
		Help:      "Lamports currently held by unclaimed races",
	})
	StalledRaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stalled_races",
		Help:      "Active races still missing a result after the stall threshold",
	})
)

// Histogram metrics
var (
	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of escrow operations in seconds",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"})
	AuditDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_duration_seconds",
		Help:      "Duration of escrow audit passes in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(OperationsTotal)
		registry.MustRegister(PrizesPaidLamportsTotal)
		registry.MustRegister(AuditRunsTotal)

		registry.MustRegister(RacesByStatus)
		registry.MustRegister(EscrowLockedLamports)
		registry.MustRegister(StalledRaces)

		registry.MustRegister(OperationDuration)
		registry.MustRegister(AuditDuration)

		registry.MustRegister(LedgerTransactionsTotal)
		registry.MustRegister(LedgerTransactionDuration)

		registry.MustRegister(RaceCacheLookups)
		registry.MustRegister(RaceCacheHitRatio)
		registry.MustRegister(RaceCacheItems)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordOperation records one escrow operation. outcome is "ok" or an error code.
func RecordOperation(op, outcome string, durationSeconds float64) {
	OperationsTotal.WithLabelValues(op, outcome).Inc()
	OperationDuration.WithLabelValues(op).Observe(durationSeconds)
}

// RecordPrizePaid adds a payout to the prizes counter.
func RecordPrizePaid(lamports uint64) {
	PrizesPaidLamportsTotal.Add(float64(lamports))
}

// RecordAudit records an audit pass.
func RecordAudit(ok bool, durationSeconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	AuditRunsTotal.WithLabelValues(result).Inc()
	AuditDuration.Observe(durationSeconds)
}

// UpdateRaceGauges replaces the escrow gauges with the result of an audit pass.
func UpdateRaceGauges(byStatus map[string]int, lockedLamports uint64, stalled int) {
	RacesByStatus.Reset()
	for status, count := range byStatus {
		RacesByStatus.WithLabelValues(status).Set(float64(count))
	}
	EscrowLockedLamports.Set(float64(lockedLamports))
	StalledRaces.Set(float64(stalled))
}
