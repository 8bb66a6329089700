// Package telemetry holds the Prometheus metrics of the bot.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages used as the "stage" label of PipelineFailures.
const (
	StageExtract = "extract"
	StageReply   = "reply"
	StageDelete  = "delete"
	StageRender  = "render"
	StageUpload  = "upload"
	StagePanic   = "panic"
)

type Metrics struct {
	registry *prometheus.Registry

	Messages         prometheus.Counter
	SpoilersPosted   *prometheus.CounterVec
	SpoilersRejected prometheus.Counter
	PipelineFailures *prometheus.CounterVec
	RenderDuration   prometheus.Histogram
}

// NewMetrics registers every metric on a fresh registry, so several
// instances can live in one process (tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Messages: f.NewCounter(prometheus.CounterOpts{
			Name: "spoilerbot_messages_total",
			Help: "Inbound chat messages seen by the bot",
		}),
		SpoilersPosted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spoilerbot_spoilers_posted_total",
			Help: "Placeholders uploaded, by kind (self-spoiler, marked-spoiler)",
		}, []string{"kind"}),
		SpoilersRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "spoilerbot_spoilers_rejected_total",
			Help: "Mark requests rejected for lack of permission",
		}),
		PipelineFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spoilerbot_pipeline_failures_total",
			Help: "Pipelines aborted by an error, by stage",
		}, []string{"stage"}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spoilerbot_render_duration_seconds",
			Help:    "Placeholder render duration seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSince records the time elapsed since start in obs.
func ObserveSince(obs prometheus.Observer, start time.Time) time.Duration {
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}
