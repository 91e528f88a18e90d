package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dwh"

// Metrics records one pipeline run. The registry is private to the run so
// the textfile only ever contains the latest values.
type Metrics struct {
	registry     *prometheus.Registry
	tableRows    *prometheus.GaugeVec
	stepDuration *prometheus.GaugeVec
	stepFailures *prometheus.CounterVec
	verification prometheus.Gauge
	loaded       prometheus.Gauge
	lastRun      prometheus.Gauge
}

// NewMetrics creates and registers the run metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Row count per managed table at verification time.",
		}, []string{"table"}),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of each pipeline step in the last run.",
		}, []string{"step"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Failed pipeline step attempts.",
		}, []string{"step"}),
		verification: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verification_passed",
			Help:      "1 when all counts matched the expected mapping.",
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_executed",
			Help:      "1 when the run copied and transformed data.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	m.registry.MustRegister(m.tableRows, m.stepDuration, m.stepFailures, m.verification, m.loaded, m.lastRun)
	return m
}

// ObserveStep records the duration and outcome of a step
func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	m.stepDuration.WithLabelValues(step).Set(d.Seconds())
	if err != nil {
		m.stepFailures.WithLabelValues(step).Inc()
	}
}

// ObserveCounts records per-table row counts
func (m *Metrics) ObserveCounts(counts map[string]int64) {
	for table, n := range counts {
		m.tableRows.WithLabelValues(table).Set(float64(n))
	}
}

// ObserveVerdict records the outcome of the run
func (m *Metrics) ObserveVerdict(passed, loaded bool, finished time.Time) {
	m.verification.Set(boolToFloat(passed))
	m.loaded.Set(boolToFloat(loaded))
	m.lastRun.Set(float64(finished.Unix()))
}

// Gatherer exposes the registry, mainly for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
