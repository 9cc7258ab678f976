package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docstream"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	phaseDuration *prom.HistogramVec
	builds        *prom.CounterVec
	inputs        prom.Counter
	outputs       prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of adapter phases (build, format)",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
		builds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Documentation builds by result",
		}, []string{"result"}),
		inputs: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "inputs_total",
			Help:      "Source files collected",
		}),
		outputs: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_total",
			Help:      "Output files emitted",
		}),
	}
	reg.MustRegister(pr.phaseDuration, pr.builds, pr.inputs, pr.outputs)
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildResult(result ResultLabel) {
	if p == nil {
		return
	}
	p.builds.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) AddInputs(n int) {
	if p == nil {
		return
	}
	p.inputs.Add(float64(n))
}

func (p *PrometheusRecorder) AddOutputs(n int) {
	if p == nil {
		return
	}
	p.outputs.Add(float64(n))
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
