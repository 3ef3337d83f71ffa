package tracker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	startedTransactions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm_host_started_transactions",
			Help: "Number of transactions for which a started event was received.",
		},
	)
	finishedTransactions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm_host_finished_transactions",
			Help: "Number of transactions for which a finished event was received.",
		},
	)
	pendingTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm_host_pending_transactions",
			Help: "Number of started transactions still missing their finished event.",
		},
	)
	trackerCollectors = []prometheus.Collector{
		startedTransactions,
		finishedTransactions,
		pendingTransactions,
	}

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(trackerCollectors...)
	})
}
