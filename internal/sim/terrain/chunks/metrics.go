package chunks

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the pool's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	Requests    prometheus.Counter
	CacheHits   prometheus.Counter
	Synthesis   prometheus.Histogram
	QueueLength prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "piverse_heightmap_requests_total",
			Help: "Heightmap requests accepted by the worker pool",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "piverse_heightmap_cache_hits_total",
			Help: "Heightmap requests answered from the shared memo",
		}),
		Synthesis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "piverse_heightmap_synthesis_seconds",
			Help:    "Time spent synthesizing one heightmap",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "piverse_heightmap_queue_length",
			Help: "Jobs waiting for a worker",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.CacheHits, m.Synthesis, m.QueueLength)
	}
	return m
}

func (m *Metrics) request() {
	if m != nil {
		m.Requests.Inc()
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.Synthesis.Observe(seconds)
	}
}

func (m *Metrics) queue(n int) {
	if m != nil {
		m.QueueLength.Set(float64(n))
	}
}
