package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector on a private registry.
type Prometheus struct {
	reg       *prometheus.Registry
	namespace string
	once      sync.Once

	seated          prometheus.Gauge
	shortfall       prometheus.Gauge
	repeats         *prometheus.GaugeVec
	swaps           prometheus.Gauge
	splitProjects   prometheus.Gauge
	publishFailures *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	lastRun         *prometheus.GaugeVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a collector. A nil registry gets a fresh one; an
// empty namespace defaults to "dailyshuffle".
func NewPrometheus(reg *prometheus.Registry, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "dailyshuffle"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.seated = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "seated",
			Help:      "People seated in a room on the last run.",
		})
		p.shortfall = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "shortfall",
			Help:      "People placed in overflow on the last run.",
		})
		p.repeats = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "repeats",
			Help:      "People in the same room as the prior allocation (phase=before|after swaps).",
		}, []string{"phase"})
		p.swaps = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "swaps",
			Help:      "Anti-repeat swaps made on the last run.",
		})
		p.splitProjects = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "split_projects",
			Help:      "Project groups that could not be seated in one room on the last run.",
		})
		p.publishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "publish",
			Name:      "failures_total",
			Help:      "Failed publication calls by stage and target.",
		}, []string{"stage", "target"})
		p.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of a run by status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"})
		p.lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "run",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time the last run finished, by status.",
		}, []string{"status"})

		p.reg.MustRegister(p.seated)
		p.reg.MustRegister(p.shortfall)
		p.reg.MustRegister(p.repeats)
		p.reg.MustRegister(p.swaps)
		p.reg.MustRegister(p.splitProjects)
		p.reg.MustRegister(p.publishFailures)
		p.reg.MustRegister(p.runDuration)
		p.reg.MustRegister(p.lastRun)
	})
}

// RecordAllocation sets the allocation gauges.
func (p *Prometheus) RecordAllocation(a Allocation) {
	p.ensureRegistered()
	p.seated.Set(float64(a.Seated))
	p.shortfall.Set(float64(a.Shortfall))
	p.repeats.WithLabelValues("before").Set(float64(a.RepeatsBefore))
	p.repeats.WithLabelValues("after").Set(float64(a.RepeatsAfter))
	p.swaps.Set(float64(a.Swaps))
	p.splitProjects.Set(float64(a.SplitProjects))
}

// RecordPublishFailure increments the failure counter.
func (p *Prometheus) RecordPublishFailure(stage, target string) {
	p.ensureRegistered()
	p.publishFailures.WithLabelValues(stage, target).Inc()
}

// ObserveRun records run duration and completion time.
func (p *Prometheus) ObserveRun(status string, seconds float64) {
	p.ensureRegistered()
	p.runDuration.WithLabelValues(status).Observe(seconds)
	p.lastRun.WithLabelValues(status).SetToCurrentTime()
}

// WriteTextfile writes every metric in text exposition format to path,
// atomically.
func (p *Prometheus) WriteTextfile(path string) error {
	p.ensureRegistered()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
