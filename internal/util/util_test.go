package util

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

// TestFormatBytes verifies the fixed-width human-readable byte format.
func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%v): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestStatsAddPacket verifies that packets are counted by outcome.
func TestStatsAddPacket(t *testing.T) {
	s := &stats{}
	s.AddPacket(false, nil)
	s.AddPacket(true, nil)
	s.AddPacket(true, nil)
	s.AddPacket(true, errors.New("bad"))

	if got := s.DataPackets.Load(); got != 1 {
		t.Errorf("DataPackets mismatch: got %d, want 1", got)
	}
	if got := s.ControlPackets.Load(); got != 2 {
		t.Errorf("ControlPackets mismatch: got %d, want 2", got)
	}
	if got := s.DecodeErrors.Load(); got != 1 {
		t.Errorf("DecodeErrors mismatch: got %d, want 1", got)
	}
}

// TestFormatStats verifies the interval summary line.
func TestFormatStats(t *testing.T) {
	got := formatStats(snapshot{peers: 1, closed: 3, data: 10, control: 2, errors: 0, bytes: 2048}, 2*time.Second)
	want := "In:  1.0 KiB/s | Data: 10 | Ctrl: 2 | Err: 0 | Peers:  1↑  3↓"
	if got != want {
		t.Errorf("formatStats mismatch:\n got %q\nwant %q", got, want)
	}
}

// TestSnapshotTracksClosedPeers verifies that peer closes show up in the
// interval delta.
func TestSnapshotTracksClosedPeers(t *testing.T) {
	s := &stats{}
	s.AddPeer()
	s.AddPeer()
	prev := s.snapshot()

	s.RemovePeer()
	d := s.snapshot().sub(prev)
	if d.peers != 0 || d.closed != 1 {
		t.Errorf("delta mismatch: got peers=%d closed=%d, want 0/1", d.peers, d.closed)
	}
}

// TestParseLevel verifies level names and the error for unknown names.
func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want pterm.LogLevel
	}{
		{"trace", pterm.LogLevelTrace},
		{"DEBUG", pterm.LogLevelDebug},
		{"", pterm.LogLevelInfo},
		{" warn ", pterm.LogLevelWarn},
		{"off", pterm.LogLevelDisabled},
	}
	for _, tc := range testCases {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestPeerIDStable verifies that the same address always hashes the same way
// and different ports do not collide.
func TestPeerIDStable(t *testing.T) {
	a := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
	b := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9001}

	if PeerID(a) != PeerID(a) {
		t.Error("PeerID not stable")
	}
	if PeerID(a) == PeerID(b) {
		t.Error("PeerID collision for different ports")
	}
}
