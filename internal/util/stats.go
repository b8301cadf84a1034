package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide datagram counter.
var Stats = &stats{}

type stats struct {
	TotalPeers     atomic.Int64 // cumulative count of accepted peers since process start
	ClosedPeers    atomic.Int64 // cumulative count of closed peers since process start
	DataPackets    atomic.Int64 // decoded data packets
	ControlPackets atomic.Int64 // decoded control packets
	DecodeErrors   atomic.Int64 // datagrams rejected by the codec
	BytesRecv      atomic.Int64 // cumulative bytes read from peers
}

func (s *stats) AddPeer()      { s.TotalPeers.Add(1) }
func (s *stats) RemovePeer()   { s.ClosedPeers.Add(1) }
func (s *stats) AddRecv(n int) { s.BytesRecv.Add(int64(n)) }

// AddPacket counts one datagram by decode outcome.
func (s *stats) AddPacket(control bool, err error) {
	switch {
	case err != nil:
		s.DecodeErrors.Add(1)
	case control:
		s.ControlPackets.Add(1)
	default:
		s.DataPackets.Add(1)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs listener statistics
// every interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				d := cur.sub(prev)
				if d.data > 0 || d.control > 0 || d.errors > 0 || d.peers > 0 || d.closed > 0 {
					pterm.DefaultLogger.Info(formatStats(d, interval))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

type snapshot struct {
	peers, closed, data, control, errors, bytes int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		peers:   s.TotalPeers.Load(),
		closed:  s.ClosedPeers.Load(),
		data:    s.DataPackets.Load(),
		control: s.ControlPackets.Load(),
		errors:  s.DecodeErrors.Load(),
		bytes:   s.BytesRecv.Load(),
	}
}

func (a snapshot) sub(b snapshot) snapshot {
	return snapshot{
		peers:   a.peers - b.peers,
		closed:  a.closed - b.closed,
		data:    a.data - b.data,
		control: a.control - b.control,
		errors:  a.errors - b.errors,
		bytes:   a.bytes - b.bytes,
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of one reporting interval.
func formatStats(d snapshot, interval time.Duration) string {
	rate := float64(d.bytes) / interval.Seconds()
	return fmt.Sprintf("In: %s/s | Data: %d | Ctrl: %d | Err: %d | Peers: %2d↑ %2d↓",
		formatBytes(rate),
		d.data,
		d.control,
		d.errors,
		d.peers,
		d.closed,
	)
}
