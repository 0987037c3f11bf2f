// Package server implements the erfgen HTTP API.
//
// The API exposes one generation endpoint plus liveness and Prometheus
// metrics endpoints. Geometry inputs and outputs travel as GeoJSON; options
// use the same JSON shape as pipeline.Options.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattfenn/erfgen/pkg/buildinfo"
	"github.com/mattfenn/erfgen/pkg/observability"
)

// MetricsProvider owns the Prometheus registry and the pipeline metrics.
type MetricsProvider struct {
	reg *prometheus.Registry

	buildInfo     *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	parcelCount   prometheus.Histogram
}

// NewMetricsProvider creates a registry with process, Go runtime, build and
// pipeline metrics registered.
func NewMetricsProvider() *MetricsProvider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &MetricsProvider{
		reg: reg,
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "erfgen_build_info",
				Help: "Build info for this binary (value is always 1).",
			},
			[]string{"version", "revision", "build_date"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erfgen_runs_total",
				Help: "Completed pipeline runs.",
			},
			[]string{"mode"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erfgen_run_duration_seconds",
				Help:    "Wall time of completed pipeline runs.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"mode"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erfgen_stage_duration_seconds",
				Help:    "Wall time of individual pipeline stages.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"stage"},
		),
		parcelCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "erfgen_run_parcels",
				Help:    "Parcels produced per completed run.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}

	reg.MustRegister(p.buildInfo, p.runsTotal, p.runDuration, p.stageDuration, p.parcelCount)
	p.buildInfo.WithLabelValues(buildinfo.Version, buildinfo.Commit, buildinfo.Date).Set(1)

	return p
}

// Handler serves the metrics endpoint.
func (p *MetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// RunHooks returns pipeline hooks that record run and stage metrics.
// Register them with observability.SetRunHooks at startup.
func (p *MetricsProvider) RunHooks() observability.RunHooks {
	return &metricHooks{provider: p}
}

type metricHooks struct {
	provider *MetricsProvider
}

func (h *metricHooks) OnStageComplete(stage string, duration time.Duration) {
	h.provider.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (h *metricHooks) OnRunComplete(mode string, parcels int, duration time.Duration) {
	h.provider.runsTotal.WithLabelValues(mode).Inc()
	h.provider.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	h.provider.parcelCount.Observe(float64(parcels))
}
