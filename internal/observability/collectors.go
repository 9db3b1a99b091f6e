package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"piverse.ai/internal/persistence/indexdb"
	"piverse.ai/internal/sim/world"
)

// WorldSource is the read side of *world.World the collectors poll.
type WorldSource interface {
	ID() string
	Metrics() world.WorldMetrics
}

// RegisterWorld exposes the world's last published metrics as gauges
// labelled by world id.
func RegisterWorld(reg prometheus.Registerer, w WorldSource) {
	labels := prometheus.Labels{"world_id": w.ID()}
	gauge := func(name, help string, f func(world.WorldMetrics) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return f(w.Metrics()) })
	}
	reg.MustRegister(
		gauge("piverse_world_tick", "Current world tick",
			func(m world.WorldMetrics) float64 { return float64(m.Tick) }),
		gauge("piverse_world_players", "Connected players",
			func(m world.WorldMetrics) float64 { return float64(m.Players) }),
		gauge("piverse_world_creatures", "Simulated creatures",
			func(m world.WorldMetrics) float64 { return float64(m.Creatures) }),
		gauge("piverse_world_pending_chunks", "Chunk heightmaps awaiting a worker, summed over sessions",
			func(m world.WorldMetrics) float64 { return float64(m.PendingChunks) }),
		gauge("piverse_world_ready_chunks", "Chunk heightmaps cached, summed over sessions",
			func(m world.WorldMetrics) float64 { return float64(m.ReadyChunks) }),
		gauge("piverse_world_active_patterns", "Emergent behavior patterns above the activity threshold",
			func(m world.WorldMetrics) float64 { return float64(m.Patterns) }),
		gauge("piverse_world_step_ms", "Duration of the last tick in milliseconds",
			func(m world.WorldMetrics) float64 { return m.StepMS }),
	)
}

// IndexSource is the read side of *indexdb.SQLiteIndex.
type IndexSource interface {
	Stats() indexdb.QueueStats
}

// indexCollector reports index queue drops and depth at scrape time.
type indexCollector struct {
	src   IndexSource
	drops *prometheus.Desc
	depth *prometheus.Desc
	capac *prometheus.Desc
}

func RegisterIndex(reg prometheus.Registerer, src IndexSource) {
	reg.MustRegister(&indexCollector{
		src: src,
		drops: prometheus.NewDesc("piverse_index_dropped_total",
			"Index writes dropped because the queue was full", []string{"kind"}, nil),
		depth: prometheus.NewDesc("piverse_index_queue_depth",
			"Index writes waiting for the writer goroutine", nil, nil),
		capac: prometheus.NewDesc("piverse_index_queue_capacity",
			"Index queue capacity", nil, nil),
	})
}

func (c *indexCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.drops
	ch <- c.depth
	ch <- c.capac
}

func (c *indexCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(st.DropEventTotal), "event")
	ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(st.DropTickTotal), "tick")
	ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(st.DropSnapshotTotal), "snapshot")
	ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(st.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.capac, prometheus.GaugeValue, float64(st.QueueCapacity))
}

// SessionMetrics counts websocket sessions and inbound messages. A nil
// *SessionMetrics records nothing.
type SessionMetrics struct {
	Sessions prometheus.Gauge
	Messages *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "piverse_ws_sessions",
			Help: "Open websocket sessions",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "piverse_ws_messages_total",
			Help: "Inbound websocket messages by type and status",
		}, []string{"type", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.Sessions, m.Messages)
	}
	return m
}

func (m *SessionMetrics) Opened() {
	if m != nil {
		m.Sessions.Inc()
	}
}

func (m *SessionMetrics) Closed() {
	if m != nil {
		m.Sessions.Dec()
	}
}

func (m *SessionMetrics) Message(typ, status string) {
	if m != nil {
		m.Messages.WithLabelValues(typ, status).Inc()
	}
}
