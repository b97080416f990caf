// Package metrics exposes pipeline counters and latencies to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики конвейера приёма. Методы безопасны для nil.
type Metrics struct {
	accepted prometheus.Counter
	failed   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorhub_readings_accepted_total",
			Help: "Readings that completed the pipeline.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorhub_readings_failed_total",
			Help: "Readings that failed, by originating stage.",
		}, []string{"stage"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensorhub_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
	}
	reg.MustRegister(m.accepted, m.failed, m.latency)
	return m
}

// RegisterFeed экспортирует размер журнала и число наблюдателей.
func RegisterFeed(reg prometheus.Registerer, logLen, observers func() int) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sensorhub_reading_log_entries",
			Help: "Entries held in the in-memory reading log.",
		}, func() float64 { return float64(logLen()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sensorhub_observers",
			Help: "Connected live observers.",
		}, func() float64 { return float64(observers()) }),
	)
}

func (m *Metrics) IncAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

func (m *Metrics) IncFailed(stage string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(stage).Observe(d.Seconds())
}
