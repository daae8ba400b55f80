// Package metrics holds the Prometheus collectors exported on /metrics.
// All methods are nil-safe so components can run without metrics wired.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "signalreach"

// Draft request outcomes.
const (
	DraftOK          = "ok"
	DraftInvalid     = "invalid"
	DraftUnavailable = "unavailable"
)

// Scrape unit outcomes.
const (
	ScrapeInserted = "inserted"
	ScrapeEmpty    = "empty"
	ScrapeSkipped  = "skipped"
	ScrapeFailed   = "failed"
)

type Metrics struct {
	DraftRequests    *prometheus.CounterVec
	ScrapeWorkspaces *prometheus.CounterVec
	SignalsInserted  prometheus.Counter
	ScrapeRun        prometheus.Histogram
	SignalActions    *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DraftRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_requests_total",
			Help:      "Draft generation requests by outcome.",
		}, []string{"outcome"}),
		ScrapeWorkspaces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_workspaces_total",
			Help:      "Per-workspace scrape units by outcome.",
		}, []string{"outcome"}),
		SignalsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_inserted_total",
			Help:      "Signals written by scrape runs.",
		}),
		ScrapeRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_run_seconds",
			Help:      "Wall time of a full scrape trigger.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SignalActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_actions_total",
			Help:      "Lifecycle actions applied to signals.",
		}, []string{"action", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.DraftRequests, m.ScrapeWorkspaces, m.SignalsInserted, m.ScrapeRun, m.SignalActions,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *Metrics) IncDraft(outcome string) {
	if m == nil || m.DraftRequests == nil {
		return
	}
	m.DraftRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncScrapeWorkspace(outcome string) {
	if m == nil || m.ScrapeWorkspaces == nil {
		return
	}
	m.ScrapeWorkspaces.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddInserted(n int) {
	if m == nil || m.SignalsInserted == nil || n <= 0 {
		return
	}
	m.SignalsInserted.Add(float64(n))
}

func (m *Metrics) ObserveScrapeRun(d time.Duration) {
	if m == nil || m.ScrapeRun == nil {
		return
	}
	m.ScrapeRun.Observe(d.Seconds())
}

func (m *Metrics) IncSignalAction(action, outcome string) {
	if m == nil || m.SignalActions == nil {
		return
	}
	m.SignalActions.WithLabelValues(action, outcome).Inc()
}
