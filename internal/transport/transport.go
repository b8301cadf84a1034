// Package transport reads UDT datagrams from UDP peers and hands them,
// decoded, to a callback. It does not answer, acknowledge or retransmit.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pion/transport/v4/udp"

	"github.com/1ureka/udt/internal/metrics"
	"github.com/1ureka/udt/internal/protocol"
	"github.com/1ureka/udt/internal/util"
)

// maxDatagramSize is the most the underlying UDP listener reads per datagram.
// Anything longer arrives cut to this size.
const maxDatagramSize = 8192

// Peer identifies one remote UDP endpoint.
type Peer struct {
	ID   uint32 // hash of Addr, for log lines
	Addr net.Addr
}

// Options tunes a Listener. The zero value is usable.
//
// Datagrams are read at most 8192 bytes at a time. A datagram that fills the
// whole read is reported with an error matching protocol.ErrPacketTooLarge
// and a nil packet, since its tail may have been cut off.
type Options struct {
	// Backlog is the number of accepted-but-unserved peers; 0 uses the
	// library default.
	Backlog int
	// ReadBufferSize sets the socket receive buffer; 0 keeps the OS default.
	ReadBufferSize int
	// IdleTimeout closes a peer that sent nothing for this long; 0 disables it.
	IdleTimeout time.Duration
	// AcceptFilter decides whether the first datagram from an unknown
	// address opens a peer. Defaults to AcceptHandshake.
	AcceptFilter func([]byte) bool
	Metrics      *metrics.Metrics
}

// Listener owns a UDP socket demultiplexed into one conn per remote address.
//
// Its lifecycle is governed by the context passed to Listen and by Close.
type Listener struct {
	ln   net.Listener
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	handler func(Peer, *protocol.Packet, error)
	peers   map[string]peerConn

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type peerConn struct {
	peer Peer
	conn net.Conn
}

// AcceptHandshake reports whether b is a well-formed handshake control packet.
// It is the default filter for opening a peer.
func AcceptHandshake(b []byte) bool {
	h, _, err := protocol.DecodeControlHeader(b)
	return err == nil && h.Type == protocol.ControlTypeHandshake
}

// Listen binds addr and starts accepting peers. Register a callback with
// OnPacket before peers are expected to send.
func Listen(ctx context.Context, addr string, opts Options) (*Listener, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	if opts.AcceptFilter == nil {
		opts.AcceptFilter = AcceptHandshake
	}

	lc := udp.ListenConfig{
		Backlog:        opts.Backlog,
		ReadBufferSize: opts.ReadBufferSize,
		AcceptFilter:   opts.AcceptFilter,
	}
	ln, err := lc.Listen("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	lCtx, lCancel := context.WithCancel(ctx)
	l := &Listener{
		ln:     ln,
		opts:   opts,
		ctx:    lCtx,
		cancel: lCancel,
		peers:  make(map[string]peerConn),
	}

	l.wg.Add(1)
	go l.acceptLoop()

	// Parent context cancellation → close.
	go func() {
		<-lCtx.Done()
		l.Close()
	}()

	return l, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Done returns a channel that is closed when the Listener is shut down.
func (l *Listener) Done() <-chan struct{} {
	return l.ctx.Done()
}

// Close stops accepting, closes every peer and waits for their goroutines.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.cancel()
		err = l.ln.Close()

		l.mu.Lock()
		conns := make([]net.Conn, 0, len(l.peers))
		for _, pc := range l.peers {
			conns = append(conns, pc.conn)
		}
		l.mu.Unlock()

		for _, c := range conns {
			c.Close()
		}
		l.wg.Wait()
	})
	return err
}

// Peers returns the currently open peers ordered by address.
func (l *Listener) Peers() []Peer {
	l.mu.RLock()
	out := make([]Peer, 0, len(l.peers))
	for _, pc := range l.peers {
		out = append(out, pc.peer)
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b Peer) int {
		return strings.Compare(a.Addr.String(), b.Addr.String())
	})
	return out
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// OnPacket registers a callback invoked for every datagram from an accepted
// peer. The callback receives the decoded packet and any decoding error; for
// a malformed control payload both are non-nil. It is called from one
// goroutine per peer.
func (l *Listener) OnPacket(fn func(Peer, *protocol.Packet, error)) {
	l.mu.Lock()
	l.handler = fn
	l.mu.Unlock()
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
			default:
				util.LogError("accept error: %v", err)
				l.cancel()
			}
			return
		}

		l.wg.Add(1)
		go l.servePeer(conn)
	}
}

// servePeer reads datagrams from one peer until it idles out, errors, or the
// listener closes.
func (l *Listener) servePeer(conn net.Conn) {
	defer l.wg.Done()

	peer := Peer{ID: util.PeerID(conn.RemoteAddr()), Addr: conn.RemoteAddr()}
	if !l.addPeer(peer, conn) {
		conn.Close()
		return
	}
	defer l.removePeer(peer, conn)
	util.LogDebug("[%08x] new peer %s", peer.ID, peer.Addr)

	buf := make([]byte, protocol.MaxPacketSize)
	for {
		if l.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(l.opts.IdleTimeout))
		}

		n, err := conn.Read(buf)
		if err != nil {
			switch {
			case isTimeout(err):
				util.LogDebug("[%08x] idle for %s, closing", peer.ID, l.opts.IdleTimeout)
			case l.ctx.Err() != nil:
				// Shutting down.
			default:
				util.LogDebug("[%08x] read error: %v", peer.ID, err)
			}
			return
		}

		l.receive(peer, buf[:n])
	}
}

// receive decodes one datagram and delivers it. data is reused by the caller;
// Decode copies everything it keeps.
func (l *Listener) receive(peer Peer, data []byte) {
	var pkt *protocol.Packet
	var err error
	if len(data) >= maxDatagramSize {
		err = fmt.Errorf("%w: datagram reached the %d-byte read limit and may be truncated",
			protocol.ErrPacketTooLarge, maxDatagramSize)
	} else {
		pkt, err = protocol.Decode(data)
	}

	util.Stats.AddRecv(len(data))
	util.Stats.AddPacket(pkt != nil && pkt.IsControl, err)
	l.opts.Metrics.Observe(pkt, err, len(data))

	l.mu.RLock()
	fn := l.handler
	l.mu.RUnlock()

	if fn != nil {
		fn(peer, pkt, err)
	}
}

func (l *Listener) addPeer(peer Peer, conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		return false
	}
	l.peers[peer.Addr.String()] = peerConn{peer: peer, conn: conn}

	util.Stats.AddPeer()
	if l.opts.Metrics != nil {
		l.opts.Metrics.ActivePeers.Inc()
	}
	return true
}

func (l *Listener) removePeer(peer Peer, conn net.Conn) {
	l.mu.Lock()
	delete(l.peers, peer.Addr.String())
	l.mu.Unlock()

	conn.Close()
	util.Stats.RemovePeer()
	if l.opts.Metrics != nil {
		l.opts.Metrics.ActivePeers.Dec()
	}
	util.LogDebug("[%08x] peer closed", peer.ID)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
