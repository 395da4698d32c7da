package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PendingCases           prometheus.Gauge
	EscalationsTotal       *prometheus.CounterVec
	AcknowledgementsTotal  *prometheus.CounterVec
	ExhaustedTotal         prometheus.Counter
	AbortedTotal           prometheus.Counter
	NotificationAttempts   *prometheus.CounterVec
	ResponseTime           prometheus.Histogram
	StoreOperationDuration *prometheus.HistogramVec
	LeaderChanges          prometheus.Counter
	SweepDuration          prometheus.Histogram
}

// NewMetrics registers against the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers against a caller-owned registry; tests use
// a fresh registry per suite
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PendingCases: factory.NewGauge(prometheus.GaugeOpts{
			Name: "escalation_pending_cases",
			Help: "Current number of leads awaiting acknowledgement",
		}),
		EscalationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_tier_advances_total",
			Help: "Total number of deadline-driven tier advances",
		}, []string{"tier"}),
		AcknowledgementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_acknowledgements_total",
			Help: "Total number of acknowledged cases by tier",
		}, []string{"tier"}),
		ExhaustedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_exhausted_total",
			Help: "Total number of cases that ran out the full chain unacknowledged",
		}),
		AbortedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_aborted_total",
			Help: "Total number of cases aborted by lead withdrawal",
		}),
		NotificationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_attempts_total",
			Help: "Total number of channel send attempts",
		}, []string{"channel", "status"}),
		ResponseTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lead_response_time_seconds",
			Help:    "Time from first notification to acknowledgement",
			Buckets: []float64{15, 30, 60, 120, 240, 480, 960},
		}),
		StoreOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "case_store_operation_duration_seconds",
			Help:    "Time taken for case store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		LeaderChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_leader_changes_total",
			Help: "Total number of sweeper leader changes",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "escalation_sweep_duration_seconds",
			Help:    "Time taken to sweep the waiting set for missed deadlines",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
