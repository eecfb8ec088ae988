package txn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "recordtree"
	metricsSubsystem = "txn"
)

// Metrics holds the commit path instruments.
type Metrics struct {
	// CommitsTotal counts published commits.
	CommitsTotal prometheus.Counter

	// ConflictsTotal counts commits abandoned because the head moved.
	ConflictsTotal prometheus.Counter

	// RetriesTotal counts writes retried against a fresh snapshot.
	RetriesTotal prometheus.Counter

	// NoopsTotal counts writes whose diff changed nothing.
	NoopsTotal prometheus.Counter

	// ObjectsWrittenTotal counts objects handed to the store.
	ObjectsWrittenTotal prometheus.Counter

	// CommitDurationSeconds observes the time from apply to head update.
	CommitDurationSeconds prometheus.Histogram
}

// NewMetrics creates and registers the instruments with reg. A nil reg
// creates unregistered instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "commits_total",
			Help:      "Total number of published commits",
		}),
		ConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "conflicts_total",
			Help:      "Total number of commits rejected by a moved head",
		}),
		RetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "retries_total",
			Help:      "Total number of writes retried after a conflict",
		}),
		NoopsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "noops_total",
			Help:      "Total number of writes that produced no change",
		}),
		ObjectsWrittenTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "objects_written_total",
			Help:      "Total number of objects written to the store",
		}),
		CommitDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "commit_duration_seconds",
			Help:      "Time to apply a diff and publish the commit",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}
