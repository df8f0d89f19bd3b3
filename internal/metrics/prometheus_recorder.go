package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	reg             *prom.Registry
	runDuration     prom.Histogram
	stepDuration    *prom.HistogramVec
	stepResults     *prom.CounterVec
	runOutcomes     *prom.CounterVec
	relocatedFiles  prom.Gauge
	restoreFailures prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bookstage",
			Name:      "run_duration_seconds",
			Help:      "Total duration of a relocate, execute, restore run",
			Buckets:   prom.DefBuckets,
		})
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bookstage",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual mdbook subcommands",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookstage",
			Name:      "step_results_total",
			Help:      "mdbook subcommand results by outcome",
		}, []string{"step", "result"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookstage",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.relocatedFiles = prom.NewGauge(prom.GaugeOpts{
			Namespace: "bookstage",
			Name:      "relocated_files",
			Help:      "Number of files staged by the last run",
		})
		pr.restoreFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "bookstage",
			Name:      "restore_failures_total",
			Help:      "Files that could not be moved back to their original path",
		})
		reg.MustRegister(pr.runDuration, pr.stepDuration, pr.stepResults, pr.runOutcomes, pr.relocatedFiles, pr.restoreFailures)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil || p.stepResults == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetRelocatedFiles(n int) {
	if p == nil || p.relocatedFiles == nil {
		return
	}
	p.relocatedFiles.Set(float64(n))
}

func (p *PrometheusRecorder) IncRestoreFailures(n int) {
	if p == nil || p.restoreFailures == nil || n <= 0 {
		return
	}
	p.restoreFailures.Add(float64(n))
}
