package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProtocolMetrics records counters for the action-message core.
type ProtocolMetrics struct {
	processed    *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	pendingDepth prometheus.Gauge
	publishTried *prometheus.CounterVec
	processTime  *prometheus.HistogramVec
}

// NewProtocolMetrics registers the protocol metrics on the provided registerer.
func NewProtocolMetrics(reg prometheus.Registerer) *ProtocolMetrics {
	if reg == nil {
		return &ProtocolMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_processed_total",
		Help: "Processed action messages by kind and outcome.",
	}, []string{"kind", "outcome"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_rejected_total",
		Help: "Rejected action messages by kind and reason.",
	}, []string{"kind", "reason"})
	pendingDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_messages_depth",
		Help: "Messages queued waiting for their parent entity.",
	})
	publishTried := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_publish_attempts_total",
		Help: "Outbound broadcast attempts by result.",
	}, []string{"result"})
	processTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "message_process_seconds",
		Help:    "Time spent applying a single action message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(processed, rejected, pendingDepth, publishTried, processTime)
	return &ProtocolMetrics{
		processed:    processed,
		rejected:     rejected,
		pendingDepth: pendingDepth,
		publishTried: publishTried,
		processTime:  processTime,
	}
}

// IncProcessed counts one processed message for the kind/outcome pair.
func (m *ProtocolMetrics) IncProcessed(kind, outcome string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncRejected counts one rejected message for the kind/reason pair.
func (m *ProtocolMetrics) IncRejected(kind, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

// SetPendingDepth records the current pending queue depth.
func (m *ProtocolMetrics) SetPendingDepth(depth int) {
	if m == nil || m.pendingDepth == nil {
		return
	}
	m.pendingDepth.Set(float64(depth))
}

// IncPublish counts one outbound publish attempt by result.
func (m *ProtocolMetrics) IncPublish(result string) {
	if m == nil || m.publishTried == nil {
		return
	}
	m.publishTried.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveProcessDuration records the apply duration for the kind.
func (m *ProtocolMetrics) ObserveProcessDuration(kind string, duration time.Duration) {
	if m == nil || m.processTime == nil {
		return
	}
	m.processTime.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
