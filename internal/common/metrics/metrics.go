// internal/common/metrics/metrics.go
package metrics

import (
	apperrors "franchise-ledger/internal/common/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by outcome (ok or error code)",
		},
		[]string{"operation", "result"},
	)

	LedgerSettlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlements_total",
			Help: "Outbox entries handled by the settlement relay",
		},
		[]string{"topic", "result"},
	)

	FundraisingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundraising_cache_lookups_total",
			Help: "Fundraising snapshot cache lookups (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// ObserveLedgerOperation counts one engine call. A nil err counts as "ok",
// anything else under its error code.
func ObserveLedgerOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperrors.CodeOf(err))
	}
	LedgerOperations.WithLabelValues(operation, result).Inc()
}
