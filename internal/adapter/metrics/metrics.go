package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the hosting service.
type Metrics struct {
	registry *prometheus.Registry

	// Rotation metrics
	CyclesClosed   *prometheus.CounterVec
	HostedDuration *prometheus.HistogramVec
	ChannelsHosted *prometheus.CounterVec
	RecordErrors   *prometheus.CounterVec

	// Candidate source metrics
	SourceRequests *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry, together with the
// process and Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CyclesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamhost_cycles_closed_total",
				Help: "Total number of closed hosting cycles",
			},
			[]string{"team_id", "reason"},
		),

		HostedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teamhost_hosted_duration_seconds",
				Help:    "How long a target stayed hosted",
				Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"team_id"},
		),

		ChannelsHosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamhost_channels_hosted_total",
				Help: "Total number of host target assignments",
			},
			[]string{"team_id"},
		),

		RecordErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamhost_record_errors_total",
				Help: "Total number of failed ledger writes",
			},
			[]string{"operation"},
		),

		SourceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamhost_source_requests_total",
				Help: "Total number of candidate source lookups",
			},
			[]string{"operation", "status"},
		),

		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teamhost_source_request_duration_seconds",
				Help:    "Duration of candidate source lookups",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
