// Package metrics exposes chore workflow and runtime counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/dutyroster/internal/model"
)

const namespace = "dutyroster"

// Collector records chore workflow outcomes. It satisfies chore.Recorder.
type Collector struct {
	reg         *prometheus.Registry
	rounds      *prometheus.CounterVec
	picks       *prometheus.CounterVec
	approvals   *prometheus.CounterVec
	completions *prometheus.CounterVec
}

// New creates a collector on its own registry, with Go runtime and process
// collectors included.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		reg: reg,
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "rounds_total",
			Help:      "Assignment rounds by chore kind and result (full, insufficient, reset, empty).",
		}, []string{"kind", "result"}),
		picks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "picks_total",
			Help:      "Members picked across all rounds by chore kind.",
		}, []string{"kind"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "approvals_total",
			Help:      "Task approvals by chore kind and result (ok, failed).",
		}, []string{"kind", "result"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "completions_total",
			Help:      "Task completion signals by chore kind; duplicate=true for repeated signals.",
		}, []string{"kind", "duplicate"}),
	}
	reg.MustRegister(c.rounds, c.picks, c.approvals, c.completions)
	return c
}

// Gauge registers a gauge read from fn at scrape time.
func (c *Collector) Gauge(subsystem, name, help string, fn func() float64) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) RoundAssigned(kind model.ChoreKind, picks int, insufficient, reset bool) {
	result := "full"
	switch {
	case insufficient:
		result = "insufficient"
	case reset:
		result = "reset"
	}
	c.rounds.WithLabelValues(string(kind), result).Inc()
	c.picks.WithLabelValues(string(kind)).Add(float64(picks))
}

func (c *Collector) RoundEmpty(kind model.ChoreKind) {
	c.rounds.WithLabelValues(string(kind), "empty").Inc()
}

func (c *Collector) TaskApproved(kind model.ChoreKind) {
	c.approvals.WithLabelValues(string(kind), "ok").Inc()
}

func (c *Collector) ApprovalFailed(kind model.ChoreKind) {
	c.approvals.WithLabelValues(string(kind), "failed").Inc()
}

func (c *Collector) TaskCompleted(kind model.ChoreKind, duplicate bool) {
	c.completions.WithLabelValues(string(kind), strconv.FormatBool(duplicate)).Inc()
}
