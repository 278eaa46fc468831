package websocket

import "github.com/prometheus/client_golang/prometheus"

type hubMetrics struct {
	connections  prometheus.Gauge
	rooms        prometheus.Gauge
	eventsIn     *prometheus.CounterVec
	eventsOut    *prometheus.CounterVec
	droppedSends prometheus.Counter
	remoteEvents *prometheus.CounterVec
}

// newHubMetrics returns nil when reg is nil; every recorder is nil-safe.
func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	if reg == nil {
		return nil
	}

	m := &hubMetrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabchat_ws_connections",
			Help: "Current number of open websocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabchat_ws_rooms",
			Help: "Current number of rooms with at least one subscriber.",
		}),
		eventsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabchat_ws_events_in_total",
			Help: "Client events handled, by type and result.",
		}, []string{"type", "result"}),
		eventsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabchat_ws_events_out_total",
			Help: "Server events queued to connections, by type.",
		}, []string{"type"}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabchat_ws_dropped_sends_total",
			Help: "Events dropped because a connection's send buffer was full.",
		}),
		remoteEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabchat_backplane_events_total",
			Help: "Events exchanged with other nodes, by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		m.connections,
		m.rooms,
		m.eventsIn,
		m.eventsOut,
		m.droppedSends,
		m.remoteEvents,
	)
	return m
}

func (m *hubMetrics) setConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *hubMetrics) setRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *hubMetrics) recordIn(eventType EventType, result string) {
	if m == nil {
		return
	}
	m.eventsIn.WithLabelValues(string(eventType), result).Inc()
}

func (m *hubMetrics) recordOut(eventType EventType, n int) {
	if m == nil || n == 0 {
		return
	}
	m.eventsOut.WithLabelValues(string(eventType)).Add(float64(n))
}

func (m *hubMetrics) recordDropped() {
	if m == nil {
		return
	}
	m.droppedSends.Inc()
}

func (m *hubMetrics) recordRemote(direction string) {
	if m == nil {
		return
	}
	m.remoteEvents.WithLabelValues(direction).Inc()
}
