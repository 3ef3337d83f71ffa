package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	submittedTransactions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm_host_submitted_transactions",
			Help: "Number of transactions submitted to the scheduler.",
		},
	)

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(submittedTransactions)
	})
}
