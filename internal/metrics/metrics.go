// Package metrics exposes Prometheus counters for message classification
// and merging.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dusk-indust/mosromgr/internal/orchestrator"
)

// Recorder counts progress events and merge outcomes.
type Recorder struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	merges      *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewRecorder registers the collectors, plus the Go runtime and process
// collectors, on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mosromgr",
			Name:      "messages_total",
			Help:      "MOS messages seen, by phase, status and kind.",
		}, []string{"phase", "status", "kind"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mosromgr",
			Name:      "diagnostics_total",
			Help:      "Recoverable conditions met while merging, by code.",
		}, []string{"code"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mosromgr",
			Name:      "merges_total",
			Help:      "Collection merges, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mosromgr",
			Name:      "merge_duration_seconds",
			Help:      "Wall time of collection merges.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	r.registry.MustRegister(
		r.messages,
		r.diagnostics,
		r.merges,
		r.duration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

// Observe counts one progress event. It is safe to use as an
// orchestrator.Options.OnProgress callback.
func (r *Recorder) Observe(ev orchestrator.ProgressEvent) {
	r.messages.WithLabelValues(ev.Phase.String(), string(ev.Status), ev.Kind.String()).Inc()
}

// ObserveMerge records the outcome of one merge. err is the error returned
// by Collection.Merge.
func (r *Recorder) ObserveMerge(res *orchestrator.Result, err error, elapsed time.Duration) {
	r.duration.Observe(elapsed.Seconds())
	outcome := "ok"
	switch {
	case err != nil && orchestrator.IsFatal(err):
		outcome = "fatal"
	case err != nil:
		outcome = "error"
	case res != nil && len(res.Diagnostics) > 0:
		outcome = "partial"
	}
	r.merges.WithLabelValues(outcome).Inc()
	if res == nil {
		return
	}
	for _, d := range res.Diagnostics {
		r.diagnostics.WithLabelValues(d.Code()).Inc()
	}
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
