// Package metrics exposes Prometheus instruments for decoded UDT traffic.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/1ureka/udt/internal/protocol"
)

// Metrics contains all Prometheus metrics for the listener.
type Metrics struct {
	DatagramsReceived prometheus.Counter
	PacketsDecoded    *prometheus.CounterVec // labels: family, type
	DecodeErrors      *prometheus.CounterVec // labels: kind
	DatagramSize      prometheus.Histogram
	ActivePeers       prometheus.Gauge
	MonitorClients    prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DatagramsReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "udt_datagrams_received_total",
			Help: "Total number of UDP datagrams read from peers",
		}),
		PacketsDecoded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "udt_packets_decoded_total",
			Help: "Total number of packets decoded, by family and control type",
		}, []string{"family", "type"}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "udt_decode_errors_total",
			Help: "Total number of datagrams rejected by the codec, by error kind",
		}, []string{"kind"}),
		DatagramSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "udt_datagram_size_bytes",
			Help:    "Size of received datagrams",
			Buckets: prometheus.ExponentialBuckets(16, 2, 13), // 16B to 64KiB
		}),
		ActivePeers: f.NewGauge(prometheus.GaugeOpts{
			Name: "udt_active_peers",
			Help: "Current number of accepted peers",
		}),
		MonitorClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "udt_monitor_clients",
			Help: "Current number of connected monitor subscribers",
		}),
	}
}

// Observe records one datagram of size n and its decode outcome.
// pkt may be non-nil together with err when only the payload was malformed.
func (m *Metrics) Observe(pkt *protocol.Packet, err error, n int) {
	if m == nil {
		return
	}
	m.DatagramsReceived.Inc()
	m.DatagramSize.Observe(float64(n))

	if err != nil {
		m.DecodeErrors.WithLabelValues(ErrorKind(err)).Inc()
		return
	}
	if pkt.IsControl {
		m.PacketsDecoded.WithLabelValues("control", typeLabel(pkt.Control.Type)).Inc()
		return
	}
	m.PacketsDecoded.WithLabelValues("data", "").Inc()
}

// typeLabel keeps label cardinality bounded: every unknown code shares one label.
func typeLabel(t protocol.ControlType) string {
	if !t.IsKnown() {
		return "unknown"
	}
	return t.String()
}

// ErrorKind names the codec error class for labels and events.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, protocol.ErrWrongPacketFamily):
		return "wrong_family"
	case errors.Is(err, protocol.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, protocol.ErrPacketTooLarge):
		return "too_large"
	default:
		return "other"
	}
}
