package main

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1ureka/udt/internal/protocol"
	"github.com/1ureka/udt/internal/transport"
)

// TestParsePort verifies the interactive port validation.
func TestParsePort(t *testing.T) {
	testCases := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"9000", 9000, true},
		{" 1 ", 1, true},
		{"65535", 65535, true},
		{"0", 0, false},
		{"65536", 65536, false},
		{"abc", 0, false},
	}

	for _, tc := range testCases {
		got, ok := parsePort(tc.in)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Errorf("parsePort(%q): got (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

// TestResolveConfigFlagsOverrideFile verifies precedence of flags over the file.
func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udtdump.yaml")
	content := "listen:\n  addr: \"127.0.0.1:7000\"\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := resolveConfig(flags{
		configPath: path,
		monitor:    "127.0.0.1:0",
		pin:        "9999",
		debug:      true,
	})
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	if cfg.Listen.Addr != "127.0.0.1:7000" {
		t.Errorf("Listen.Addr mismatch: got %q", cfg.Listen.Addr)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.PIN != "9999" {
		t.Errorf("Monitor mismatch: %+v", cfg.Monitor)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level mismatch: got %q, want debug", cfg.Log.Level)
	}

	cfg, err = resolveConfig(flags{configPath: path, listen: ":9100"})
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	if cfg.Listen.Addr != ":9100" || cfg.Log.Level != "warn" {
		t.Errorf("override mismatch: %+v", cfg)
	}
}

// TestResolveConfigRejectsBadFlags verifies that flag values are validated.
func TestResolveConfigRejectsBadFlags(t *testing.T) {
	if _, err := resolveConfig(flags{monitor: "no-port"}); err == nil {
		t.Error("expected error for monitor address without port")
	}
	if _, err := resolveConfig(flags{configPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}
}

// TestProbePacketsEncode verifies that every probe packet is a valid datagram
// and that the first one opens a peer.
func TestProbePacketsEncode(t *testing.T) {
	pkts := probePackets(0xDEADBEEF, netip.MustParseAddr("10.0.0.1"))
	if len(pkts) != 3 {
		t.Fatalf("expected 3 probe packets, got %d", len(pkts))
	}

	for i, pkt := range pkts {
		data, err := protocol.Encode(pkt)
		if err != nil {
			t.Fatalf("packet %d: Encode failed: %v", i, err)
		}
		if got := transport.AcceptHandshake(data); got != (i == 0) {
			t.Errorf("packet %d: AcceptHandshake got %v", i, got)
		}
	}

	hs := pkts[0].Payload.(*protocol.Handshake)
	if hs.InitialSequence > uint32(protocol.MaxSequenceNumber) {
		t.Errorf("initial sequence out of range: %d", hs.InitialSequence)
	}
}

// TestRunProbeReachesListener verifies the probe against a real listener.
func TestRunProbeReachesListener(t *testing.T) {
	ln, err := transport.Listen(context.Background(), "127.0.0.1:0", transport.Options{})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	types := make(chan protocol.ControlType, 3)
	ln.OnPacket(func(_ transport.Peer, pkt *protocol.Packet, err error) {
		if err == nil && pkt.IsControl {
			types <- pkt.Control.Type
		}
	})

	if err := runProbe(context.Background(), ln.Addr().String()); err != nil {
		t.Fatalf("runProbe failed: %v", err)
	}

	want := []protocol.ControlType{protocol.ControlTypeHandshake, protocol.ControlTypeKeepAlive, protocol.ControlTypeShutdown}
	for i, w := range want {
		select {
		case got := <-types:
			if got != w {
				t.Errorf("packet %d: got %s, want %s", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for packet %d", i)
		}
	}
}
