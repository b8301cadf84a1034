package protocol_test

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/1ureka/udt/internal/protocol"
)

// TestDecodeHandshake verifies every handshake field and both address forms.
func TestDecodeHandshake(t *testing.T) {
	testCases := []struct {
		name string
		addr []uint32
		want netip.Addr
	}{
		{"ipv4", []uint32{0xC0A80001, 0, 0, 0}, netip.MustParseAddr("192.168.0.1")},
		{"ipv6", []uint32{0x20010DB8, 0, 0, 1}, netip.MustParseAddr("2001:db8::1")},
		{"unspecified", []uint32{0, 0, 0, 0}, netip.MustParseAddr("0.0.0.0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := append(words(4, 2, 0x80000010, 1500, 25600, 0, 77, 0xC00C1E), words(tc.addr...)...)

			p, err := protocol.DecodeControlPayload(protocol.ControlTypeHandshake, b)
			if err != nil {
				t.Fatalf("DecodeControlPayload failed: %v", err)
			}
			hs, ok := p.(*protocol.Handshake)
			if !ok {
				t.Fatalf("expected *Handshake, got %T", p)
			}

			if hs.Version != 4 {
				t.Errorf("Version mismatch: got %d, want 4", hs.Version)
			}
			if hs.SocketType != protocol.SocketTypeDatagram {
				t.Errorf("SocketType mismatch: got %s, want Datagram", hs.SocketType)
			}
			if hs.InitialSequence != 0x80000010 {
				t.Errorf("InitialSequence mismatch: got 0x%X, want 0x80000010", hs.InitialSequence)
			}
			if hs.MTU != 1500 || hs.MaxFlowWindow != 25600 {
				t.Errorf("MTU/window mismatch: got %d/%d", hs.MTU, hs.MaxFlowWindow)
			}
			if hs.ConnectionType != protocol.ConnectionTypeRendezvous {
				t.Errorf("ConnectionType mismatch: got %s, want Rendezvous", hs.ConnectionType)
			}
			if hs.SocketID != 77 || hs.SynCookie != 0xC00C1E {
				t.Errorf("SocketID/SynCookie mismatch: got %d/0x%X", hs.SocketID, hs.SynCookie)
			}
			if hs.PeerAddress != tc.want {
				t.Errorf("PeerAddress mismatch: got %s, want %s", hs.PeerAddress, tc.want)
			}
		})
	}
}

// TestHandshakeUnknownEnums verifies that unrecognized socket and connection
// types are carried through instead of failing.
func TestHandshakeUnknownEnums(t *testing.T) {
	b := append(words(4, 9, 0, 0, 0, 0xFFFFFFFF, 0, 0), make([]byte, 16)...)

	p, err := protocol.DecodeControlPayload(protocol.ControlTypeHandshake, b)
	if err != nil {
		t.Fatalf("DecodeControlPayload failed: %v", err)
	}
	hs := p.(*protocol.Handshake)
	if hs.SocketType.IsKnown() || hs.SocketType.String() != "Unknown(9)" {
		t.Errorf("SocketType: got %s", hs.SocketType)
	}
	if hs.ConnectionType.IsKnown() || hs.ConnectionType.String() != "Unknown(4294967295)" {
		t.Errorf("ConnectionType: got %s", hs.ConnectionType)
	}
	if out := hs.AppendTo(nil); !bytes.Equal(out, b) {
		t.Errorf("round trip mismatch: got % X, want % X", out, b)
	}
}

// TestHandshakeAddressRoundTrip verifies that each address form is written
// back exactly as it was received.
func TestHandshakeAddressRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		addr []uint32
		want netip.Addr
	}{
		{"ipv4", []uint32{0x0A000002, 0, 0, 0}, netip.MustParseAddr("10.0.0.2")},
		{"ipv4 mapped", []uint32{0, 0, 0x0000FFFF, 0x0A000001}, netip.MustParseAddr("::ffff:10.0.0.1")},
		{"ipv6", []uint32{0xFE800000, 0, 0, 0x2A}, netip.MustParseAddr("fe80::2a")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := append(words(4, 1, 0xFFFFFFFF, 1500, 8192, 1, 7, 0), words(tc.addr...)...)

			p, err := protocol.DecodeControlPayload(protocol.ControlTypeHandshake, b)
			if err != nil {
				t.Fatalf("DecodeControlPayload failed: %v", err)
			}
			hs := p.(*protocol.Handshake)
			if hs.PeerAddress != tc.want {
				t.Errorf("PeerAddress mismatch: got %s, want %s", hs.PeerAddress, tc.want)
			}
			if out := hs.AppendTo(nil); !bytes.Equal(out, b) {
				t.Errorf("round trip mismatch: got % X, want % X", out, b)
			}
		})
	}
}

// TestHandshakeZeroAddress verifies that an unset address is written as zeros
// and read back as the unspecified IPv4 address.
func TestHandshakeZeroAddress(t *testing.T) {
	out := (&protocol.Handshake{}).AppendTo(nil)
	if got := out[32:]; !bytes.Equal(got, make([]byte, 16)) {
		t.Fatalf("address mismatch: got % X, want zeros", got)
	}

	p, err := protocol.DecodeControlPayload(protocol.ControlTypeHandshake, out)
	if err != nil {
		t.Fatalf("DecodeControlPayload failed: %v", err)
	}
	if got := p.(*protocol.Handshake).PeerAddress; got != netip.IPv4Unspecified() {
		t.Errorf("PeerAddress mismatch: got %s, want 0.0.0.0", got)
	}
}

// TestSequenceWordTopBitRejected verifies that a sequence number word with the
// top bit set fails instead of losing the bit.
func TestSequenceWordTopBitRejected(t *testing.T) {
	testCases := []struct {
		name    string
		typ     protocol.ControlType
		payload []byte
	}{
		{"light ack", protocol.ControlTypeAck, words(0x80000001)},
		{"full ack", protocol.ControlTypeAck, words(0x80000001, 1, 2, 3, 4, 5)},
		{"nak range end", protocol.ControlTypeNegativeAck, words(0x80000001, 0x80000009)},
		{"shutdown", protocol.ControlTypeShutdown, words(0x80000000)},
		{"msg drop first", protocol.ControlTypeMsgDropRequest, words(0x80000002, 3)},
		{"msg drop last", protocol.ControlTypeMsgDropRequest, words(2, 0x80000003)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := protocol.DecodeControlPayload(tc.typ, tc.payload)
			if p != nil {
				t.Errorf("expected no payload, got %+v", p)
			}

			var malformed *protocol.MalformedPayloadError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected *MalformedPayloadError, got %v", err)
			}
			if malformed.Type != tc.typ || malformed.Detail == "" {
				t.Errorf("error mismatch: %+v", malformed)
			}
			if !errors.Is(err, protocol.ErrMalformedPayload) {
				t.Errorf("error does not match ErrMalformedPayload")
			}
		})
	}
}

// TestDecodeAck verifies the full and light acknowledgement forms.
func TestDecodeAck(t *testing.T) {
	full, err := protocol.DecodeControlPayload(protocol.ControlTypeAck, words(10, 20, 30, 40, 50, 60))
	if err != nil {
		t.Fatalf("full ack: %v", err)
	}
	want := protocol.Ack{SequenceNumber: 10, RTT: 20, RTTVariance: 30, AvailableBuffer: 40, PacketsPerSecond: 50, LinkCapacity: 60}
	if got := *full.(*protocol.Ack); got != want {
		t.Errorf("full ack mismatch: got %+v, want %+v", got, want)
	}

	light, err := protocol.DecodeControlPayload(protocol.ControlTypeAck, words(10))
	if err != nil {
		t.Fatalf("light ack: %v", err)
	}
	ack := light.(*protocol.Ack)
	if !ack.Light || ack.SequenceNumber != 10 || ack.Len() != 4 {
		t.Errorf("light ack mismatch: %+v", ack)
	}
}

// TestDecodeNegativeAck covers single entries, ranges and the empty list.
func TestDecodeNegativeAck(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
		want    []protocol.LossRange
	}{
		{"single", words(0x00000005), []protocol.LossRange{{Start: 5, End: 5}}},
		{"range", words(0x80000003, 7), []protocol.LossRange{{Start: 3, End: 7}}},
		{"mixed", words(1, 0x80000004, 6, 10), []protocol.LossRange{{Start: 1, End: 1}, {Start: 4, End: 6}, {Start: 10, End: 10}}},
		{"empty", nil, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := protocol.DecodeControlPayload(protocol.ControlTypeNegativeAck, tc.payload)
			if err != nil {
				t.Fatalf("DecodeControlPayload failed: %v", err)
			}
			nak := p.(*protocol.NegativeAck)
			if len(nak.Ranges) != len(tc.want) {
				t.Fatalf("range count mismatch: got %v, want %v", nak.Ranges, tc.want)
			}
			for i := range tc.want {
				if nak.Ranges[i] != tc.want[i] {
					t.Errorf("range %d mismatch: got %+v, want %+v", i, nak.Ranges[i], tc.want[i])
				}
			}
		})
	}
}

// TestNegativeAckQueries verifies Lost and Contains over decoded ranges.
func TestNegativeAckQueries(t *testing.T) {
	nak := &protocol.NegativeAck{Ranges: []protocol.LossRange{{Start: 3, End: 7}, {Start: 20, End: 20}}}
	if got := nak.Lost(); got != 6 {
		t.Errorf("Lost mismatch: got %d, want 6", got)
	}
	for _, s := range []protocol.SequenceNumber{3, 5, 7, 20} {
		if !nak.Contains(s) {
			t.Errorf("expected %d to be lost", s)
		}
	}
	for _, s := range []protocol.SequenceNumber{2, 8, 19, 21} {
		if nak.Contains(s) {
			t.Errorf("expected %d not to be lost", s)
		}
	}
}

// TestMalformedPayloads verifies that length mismatches report the type, the
// expected length and the observed length.
func TestMalformedPayloads(t *testing.T) {
	testCases := []struct {
		name     string
		typ      protocol.ControlType
		payload  []byte
		expected int
	}{
		{"short handshake", protocol.ControlTypeHandshake, make([]byte, 47), 48},
		{"keepalive with body", protocol.ControlTypeKeepAlive, make([]byte, 4), 0},
		{"ack 8 bytes", protocol.ControlTypeAck, make([]byte, 8), 24},
		{"ack 28 bytes", protocol.ControlTypeAck, make([]byte, 28), 24},
		{"empty ack", protocol.ControlTypeAck, nil, 24},
		{"nak unaligned", protocol.ControlTypeNegativeAck, make([]byte, 6), 4},
		{"nak dangling range", protocol.ControlTypeNegativeAck, words(0x80000001), 8},
		{"unused with body", protocol.ControlTypeUnused, []byte{0}, 0},
		{"empty shutdown", protocol.ControlTypeShutdown, nil, 4},
		{"ackack with body", protocol.ControlTypeAckAck, make([]byte, 4), 0},
		{"msg drop 4 bytes", protocol.ControlTypeMsgDropRequest, make([]byte, 4), 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.DecodeControlPayload(tc.typ, tc.payload)

			var malformed *protocol.MalformedPayloadError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected *MalformedPayloadError, got %v", err)
			}
			if malformed.Type != tc.typ {
				t.Errorf("Type mismatch: got %s, want %s", malformed.Type, tc.typ)
			}
			if malformed.Expected != tc.expected {
				t.Errorf("Expected mismatch: got %d, want %d", malformed.Expected, tc.expected)
			}
			if malformed.Observed != len(tc.payload) {
				t.Errorf("Observed mismatch: got %d, want %d", malformed.Observed, len(tc.payload))
			}
			if !errors.Is(err, protocol.ErrMalformedPayload) {
				t.Errorf("error does not match ErrMalformedPayload")
			}
		})
	}
}

// TestOpaquePayloadsAreCopied verifies that custom and unknown payloads do
// not alias the caller's buffer.
func TestOpaquePayloadsAreCopied(t *testing.T) {
	for _, typ := range []protocol.ControlType{protocol.ControlTypeCustom, 0x0042} {
		buf := []byte{1, 2, 3}
		p, err := protocol.DecodeControlPayload(typ, buf)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		buf[0] = 0xFF

		if p.Type() != typ {
			t.Errorf("Type mismatch: got %s, want %s", p.Type(), typ)
		}
		if out := p.AppendTo(nil); !bytes.Equal(out, []byte{1, 2, 3}) {
			t.Errorf("%s: payload aliased caller buffer: % X", typ, out)
		}
	}
}
