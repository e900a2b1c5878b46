package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingester Metrics
var (
	SuccessfulIngests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingester_successful_ingests_total",
		Help: "The total number of blocks ingested and committed",
	})

	LastIngestedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingester_last_ingested_block",
		Help: "The height of the last successfully ingested block",
	})

	IngestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingester_transient_errors_total",
		Help: "The number of transient fetch or store errors that were retried",
	})

	IntegrityViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingester_integrity_violations_total",
		Help: "The number of chain integrity violations that halted ingestion",
	})

	IngestedTransactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingester_transactions_total",
		Help: "The total number of transactions ingested",
	})
)

// API Metrics
var (
	ApiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "The total number of API requests by endpoint and status",
	}, []string{"endpoint", "status"})
)
