package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful calls.
	OutcomeSuccess = "success"
	// OutcomeEmpty labels backend queries that returned no rows.
	OutcomeEmpty = "empty"
	// OutcomeError labels failed calls (pipeline or dependency issues).
	OutcomeError = "error"
)

const namespace = "mirador_investigator"

var (
	investigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investigations_total",
			Help:      "Total number of investigations handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	investigationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "investigation_seconds",
			Help:      "Investigation latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	backendQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_queries_total",
			Help:      "Log backend queries issued by the evidence fetcher, partitioned by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	tracerQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracer_queries_total",
			Help:      "Correlation tracer queries issued (one per id and calendar day).",
		},
	)

	clustersProduced = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clusters_produced",
			Help:      "Pattern clusters produced per investigation.",
			Buckets:   []float64{1, 2, 4, 8, 12, 16, 32, 64, 128},
		},
	)

	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Pattern classifications, partitioned by verdict.",
		},
		[]string{"verdict"},
	)

	timelineBranchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_branches_total",
			Help:      "Timeline branch executions, partitioned by branch and outcome.",
		},
		[]string{"branch", "outcome"},
	)
)

// Register attaches the investigator collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		investigationsTotal,
		investigationDurationSeconds,
		backendQueriesTotal,
		tracerQueriesTotal,
		clustersProduced,
		classificationsTotal,
		timelineBranchesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInvestigation records an investigation duration and outcome label. Outcomes are reason
// codes ("COMPLETED", "NO_EVIDENCE", ...) or OutcomeError.
func ObserveInvestigation(duration time.Duration, outcome string) {
	label := strings.ToLower(outcome)
	if label == "" {
		label = OutcomeSuccess
	}
	investigationsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	investigationDurationSeconds.Observe(duration.Seconds())
}

// ObserveBackendQuery counts one fetcher query.
func ObserveBackendQuery(backend, outcome string) {
	backendQueriesTotal.WithLabelValues(backend, outcome).Inc()
}

// AddTracerQueries counts correlation tracer queries.
func AddTracerQueries(n int) {
	if n > 0 {
		tracerQueriesTotal.Add(float64(n))
	}
}

// ObserveClusters records the number of clusters produced by one run.
func ObserveClusters(n int) {
	clustersProduced.Observe(float64(n))
}

// ObserveClassification counts one verdict.
func ObserveClassification(verdict string) {
	classificationsTotal.WithLabelValues(verdict).Inc()
}

// ObserveTimelineBranch counts one timeline branch execution.
func ObserveTimelineBranch(branch, outcome string) {
	timelineBranchesTotal.WithLabelValues(branch, outcome).Inc()
}
