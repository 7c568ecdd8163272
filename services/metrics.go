package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Outcome labels for NotificationOutcome.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// MetricsSink records run metrics. Implementations must not block.
type MetricsSink interface {
	RunCompleted(duration time.Duration, err error)
	NotificationOutcome(outcome, reason string)
	MarkerWriteFailed()
}

type NoopSink struct{}

func (NoopSink) RunCompleted(time.Duration, error)  {}
func (NoopSink) NotificationOutcome(string, string) {}
func (NoopSink) MarkerWriteFailed()                 {}

// PrometheusSink implements MetricsSink with the Prometheus client library.
// Registration errors are logged, never returned.
type PrometheusSink struct {
	runsTotal          prometheus.Counter
	runErrorsTotal     prometheus.Counter
	runDuration        prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
	markerErrorsTotal  prometheus.Counter
}

func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PrometheusSink{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_runs_total",
			Help: "Total number of reminder runs started.",
		}),
		runErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_run_errors_total",
			Help: "Total number of reminder runs aborted by a run-level error.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_run_duration_seconds",
			Help:    "Duration of each reminder run in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_notifications_total",
			Help: "Reminder candidates by outcome and failure reason.",
		}, []string{"outcome", "reason"}),
		markerErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_marker_write_errors_total",
			Help: "Sent notifications whose dedup marker could not be written.",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"reminder_runs_total":                s.runsTotal,
		"reminder_run_errors_total":          s.runErrorsTotal,
		"reminder_run_duration_seconds":      s.runDuration,
		"reminder_notifications_total":       s.notificationsTotal,
		"reminder_marker_write_errors_total": s.markerErrorsTotal,
	} {
		if err := reg.Register(c); err != nil {
			logger.Warn("metric registration failed", zap.String("metric", name), zap.Error(err))
		}
	}
	return s
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, err error) {
	s.runsTotal.Inc()
	s.runDuration.Observe(duration.Seconds())
	if err != nil {
		s.runErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) NotificationOutcome(outcome, reason string) {
	s.notificationsTotal.WithLabelValues(outcome, reason).Inc()
}

func (s *PrometheusSink) MarkerWriteFailed() {
	s.markerErrorsTotal.Inc()
}
