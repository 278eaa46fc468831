package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	requestTransitions *prometheus.CounterVec
	messagesSent       prometheus.Counter
	storeFailures      *prometheus.CounterVec
}

// NewMetrics returns nil when reg is nil; every recorder is nil-safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		requestTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabchat_request_transitions_total",
			Help: "Collaboration request state changes, by outcome.",
		}, []string{"outcome"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabchat_messages_sent_total",
			Help: "Messages appended to chat history.",
		}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabchat_store_failures_total",
			Help: "Relationship store failures surfaced as 503, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(m.requestTransitions, m.messagesSent, m.storeFailures)
	return m
}

func (m *Metrics) recordTransition(outcome string) {
	if m == nil {
		return
	}
	m.requestTransitions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordTransitions(outcome string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.requestTransitions.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) recordMessage() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) recordStoreFailure(op string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(op).Inc()
}
