// Package metrics records ingestion metrics for Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/laav10/astro-ingester/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/ubuntu/decorate"
)

const namespace = "astro_ingester"

// Recorder counts step results and run outcomes. It implements pipeline.Observer.
type Recorder struct {
	reg *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

// New returns a Recorder registering its metrics in reg.
func New(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Number of ingestion steps, by step and result.",
		}, []string{"step", "result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of ingestion steps.",
			// Header rewrites are fast, uploads of large frames are not. Max of 204.8.
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 13),
		}, []string{"step"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of ingestion runs, by final state.",
		}, []string{"state"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Time of the last successful ingestion.",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// StepStarted implements pipeline.Observer.
func (r *Recorder) StepStarted(pipeline.Step) {}

// StepFinished implements pipeline.Observer.
func (r *Recorder) StepFinished(res pipeline.StepResult) {
	result := "success"
	if res.Err != nil {
		result = "failure"
	}
	r.steps.WithLabelValues(string(res.Step), result).Inc()
	r.stepDuration.WithLabelValues(string(res.Step)).Observe(res.Duration.Seconds())
}

// Outcome records the final state of a run.
func (r *Recorder) Outcome(out pipeline.Outcome) {
	r.runs.WithLabelValues(out.State.String()).Inc()
	if out.Succeeded() {
		r.lastSuccess.Set(float64(time.Now().Unix()))
	}
}

// Push sends every metric to the Pushgateway at url, replacing the previous metrics of job.
func (r *Recorder) Push(ctx context.Context, url, job string, client *http.Client) (err error) {
	defer decorate.OnError(&err, "could not push metrics to %s", url)

	p := push.New(url, job).Gatherer(r.reg)
	if client != nil {
		p = p.Client(client)
	}
	return p.PushContext(ctx)
}
