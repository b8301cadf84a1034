package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/1ureka/udt/internal/protocol"
)

// TestObserveCountsByOutcome verifies the labels used for each decode outcome.
func TestObserveCountsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(&protocol.Packet{}, nil, 32)
	m.Observe(&protocol.Packet{IsControl: true, Control: protocol.ControlPacketHeader{Type: protocol.ControlTypeAck}}, nil, 40)
	m.Observe(&protocol.Packet{IsControl: true, Control: protocol.ControlPacketHeader{Type: 0x0123}}, nil, 16)
	m.Observe(nil, &protocol.InsufficientDataError{ExpectedMin: 16, Got: 3}, 3)

	if got := testutil.ToFloat64(m.DatagramsReceived); got != 4 {
		t.Errorf("DatagramsReceived mismatch: got %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("data", "")); got != 1 {
		t.Errorf("data packets mismatch: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("control", "Ack")); got != 1 {
		t.Errorf("ack packets mismatch: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("control", "unknown")); got != 1 {
		t.Errorf("unknown packets mismatch: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DecodeErrors.WithLabelValues("insufficient_data")); got != 1 {
		t.Errorf("decode errors mismatch: got %v, want 1", got)
	}
}

// TestObserveNilMetrics verifies that a nil *Metrics is a no-op.
func TestObserveNilMetrics(t *testing.T) {
	var m *Metrics
	m.Observe(nil, errors.New("ignored"), 0)
}

// TestErrorKind verifies the label for every codec error class.
func TestErrorKind(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{&protocol.InsufficientDataError{}, "insufficient_data"},
		{&protocol.WrongPacketFamilyError{ExpectedBit: 1}, "wrong_family"},
		{&protocol.MalformedPayloadError{Type: protocol.ControlTypeAck}, "malformed_payload"},
		{fmt.Errorf("%w: 70000 bytes", protocol.ErrPacketTooLarge), "too_large"},
		{errors.New("boom"), "other"},
	}

	for _, tc := range testCases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v): got %q, want %q", tc.err, got, tc.want)
		}
	}
}
