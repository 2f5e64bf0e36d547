package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics holds Prometheus metrics for the session and round engine.
type EngineMetrics struct {
	SessionsCreated    prometheus.Counter
	SessionTransitions *prometheus.CounterVec
	LiveSessions       prometheus.Gauge
	RoundsStarted      prometheus.Counter
	RoundsEnded        prometheus.Counter
	RunningRounds      prometheus.Gauge
	Votes              *prometheus.CounterVec
	Deductions         prometheus.Counter
	PersistenceErrors  *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics on the given registry.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created.",
		}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session status transitions, by target status.",
		}, []string{"status"}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently held in memory by this process.",
		}),
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Total number of rating rounds started.",
		}),
		RoundsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ended_total",
			Help:      "Total number of rating rounds closed by their timer.",
		}),
		RunningRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_rounds",
			Help:      "Rounds with an armed countdown timer.",
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Vote submissions, by result.",
		}, []string{"result"}),
		Deductions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deductions_applied_total",
			Help:      "Total number of deductions applied by hosts.",
		}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Store failures seen by the engine, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.SessionTransitions,
		m.LiveSessions,
		m.RoundsStarted,
		m.RoundsEnded,
		m.RunningRounds,
		m.Votes,
		m.Deductions,
		m.PersistenceErrors,
	)
	return m
}
