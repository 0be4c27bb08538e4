package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backfill holds the collectors for backfill runs on a dedicated registry.
type Backfill struct {
	Registry *prometheus.Registry

	usersScanned      prometheus.Counter
	attributesCreated prometheus.Counter
	batches           prometheus.Counter
	runs              *prometheus.CounterVec
	lastRun           prometheus.Gauge
	attributeRows     prometheus.Gauge
}

// NewBackfill creates and registers the backfill collectors.
func NewBackfill() *Backfill {
	m := &Backfill{
		Registry: prometheus.NewRegistry(),
		usersScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optin_backfill_users_scanned_total",
			Help: "Users examined by the marketing opt-in backfill.",
		}),
		attributesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optin_backfill_attributes_created_total",
			Help: "marketing_emails_opt_in attributes written by the backfill.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optin_backfill_batches_total",
			Help: "User pages processed by the backfill.",
		}),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optin_backfill_runs_total",
				Help: "Backfill runs, labeled by status.",
			},
			[]string{"status"}, // 'success', 'failed'
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optin_backfill_last_run_timestamp_seconds",
			Help: "Unix time the last backfill run finished.",
		}),
		attributeRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optin_backfill_attribute_rows",
			Help: "marketing_emails_opt_in rows present after the last run.",
		}),
	}
	m.Registry.MustRegister(m.usersScanned, m.attributesCreated, m.batches, m.runs, m.lastRun, m.attributeRows)
	return m
}

// ObserveBatch records one processed page.
func (m *Backfill) ObserveBatch(scanned, created int) {
	m.batches.Inc()
	m.usersScanned.Add(float64(scanned))
	m.attributesCreated.Add(float64(created))
}

// ObserveRun records a finished run; a non-nil err counts as failed.
func (m *Backfill) ObserveRun(err error, finished time.Time) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.runs.WithLabelValues(status).Inc()
	m.lastRun.Set(float64(finished.Unix()))
}

// SetAttributeRows records the opt-in row total seen after a run.
func (m *Backfill) SetAttributeRows(n int64) {
	m.attributeRows.Set(float64(n))
}

// WriteTextfile dumps the registry for node_exporter's textfile collector.
func (m *Backfill) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
