package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ledger transaction metrics
var (
	LedgerTransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_transactions_total",
		Help:      "Total number of ledger transactions by backend and result",
	}, []string{"backend", "result"})

	LedgerTransactionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_transaction_duration_seconds",
		Help:      "Duration of ledger transactions in seconds",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"backend"})
)

// RecordLedgerTransaction records a committed or rolled back ledger transaction.
func RecordLedgerTransaction(backend string, committed bool, durationSeconds float64) {
	result := "committed"
	if !committed {
		result = "rolled_back"
	}
	LedgerTransactionsTotal.WithLabelValues(backend, result).Inc()
	LedgerTransactionDuration.WithLabelValues(backend).Observe(durationSeconds)
}
