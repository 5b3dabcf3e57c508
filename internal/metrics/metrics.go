package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// Recorder holds the engine metrics on a private registry
type Recorder struct {
	registry *prometheus.Registry

	decisions          *prometheus.CounterVec
	offloadWeight      *prometheus.HistogramVec
	channelConnections *prometheus.GaugeVec
	historySize        *prometheus.GaugeVec
}

// NewRecorder creates and registers the engine metrics
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mec_decisions_total",
			Help: "Offloading decisions by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		offloadWeight: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mec_offload_weight",
			Help:    "Offload weight assigned by decisions that wrote one",
			Buckets: []float64{0, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"strategy"}),
		channelConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mec_channel_connections",
			Help: "Live connection count per station port",
		}, []string{"port"}),
		historySize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mec_history_size",
			Help: "Decision history slots by stored choice",
		}, []string{"choice"}),
	}

	r.registry.MustRegister(r.decisions, r.offloadWeight, r.channelConnections, r.historySize)
	return r
}

// ObserveDecision counts a decision and its weight when one was written
func (r *Recorder) ObserveDecision(d decision.Decision) {
	r.decisions.WithLabelValues(d.Strategy.String(), string(d.Outcome)).Inc()
	if d.Outcome != models.UNCHANGED {
		r.offloadWeight.WithLabelValues(d.Strategy.String()).Observe(d.OffloadWeight)
	}
}

// ObserveChannels publishes a station snapshot
func (r *Recorder) ObserveChannels(connections map[int]int) {
	for port, count := range connections {
		r.channelConnections.WithLabelValues(strconv.Itoa(port)).Set(float64(count))
	}
}

// ObserveHistory publishes the history distribution
func (r *Recorder) ObserveHistory(stats history.Stats) {
	r.historySize.WithLabelValues(history.Unset.String()).Set(float64(stats.Unset))
	r.historySize.WithLabelValues(history.Local.String()).Set(float64(stats.Local))
	r.historySize.WithLabelValues(history.Offload.String()).Set(float64(stats.Offload))
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true})
}
