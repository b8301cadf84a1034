// Package monitor streams decoded packet summaries to WebSocket subscribers
// and serves the Prometheus metrics page.
package monitor

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/udt/internal/metrics"
	"github.com/1ureka/udt/internal/util"
)

const (
	outboxSize = 256             // queued events per subscriber before drops
	writeWait  = 5 * time.Second // deadline for one WebSocket write
	readLimit  = 512             // subscribers only send close frames
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the monitoring HTTP server. /ws requires ?pin= and streams JSON
// events; /metrics exposes the registry.
type Server struct {
	pin      string
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	listener net.Listener
	http     *http.Server

	mu     sync.Mutex
	subs   map[uuid.UUID]*subscriber
	closed bool

	closeOnce sync.Once
}

type subscriber struct {
	id        uuid.UUID
	conn      *websocket.Conn
	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// NewServer creates a monitor with the given PIN. m and g may be nil; without
// g the /metrics route is not registered.
func NewServer(pin string, m *metrics.Metrics, g prometheus.Gatherer) *Server {
	return &Server{
		pin:      pin,
		metrics:  m,
		gatherer: g,
		subs:     make(map[uuid.UUID]*subscriber),
	}
}

// Start begins listening on addr and returns the bound TCP port.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start monitor server: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("monitor server stopped: %v", err)
		}
	}()

	return port, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if pin != s.pin {
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{
		id:     uuid.New(),
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
	if !s.add(sub) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
		conn.Close()
		return
	}
	defer s.remove(sub)

	go s.writeLoop(sub)
	s.readLoop(sub)
}

// readLoop discards client frames until the connection fails or closes.
func (s *Server) readLoop(sub *subscriber) {
	sub.conn.SetReadLimit(readLimit)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer for sub.conn.
func (s *Server) writeLoop(sub *subscriber) {
	defer sub.close()

	for {
		select {
		case msg := <-sub.outbox:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				util.LogDebug("[%s] write failed: %v", sub.id, err)
				return
			}
		case <-sub.done:
			return
		}
	}
}

func (s *Server) add(sub *subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.subs[sub.id] = sub
	if s.metrics != nil {
		s.metrics.MonitorClients.Inc()
	}
	util.LogInfo("monitor client %s connected from %s", sub.id, sub.conn.RemoteAddr())
	return true
}

func (s *Server) remove(sub *subscriber) {
	s.mu.Lock()
	_, ok := s.subs[sub.id]
	delete(s.subs, sub.id)
	s.mu.Unlock()

	sub.close()
	if ok {
		if s.metrics != nil {
			s.metrics.MonitorClients.Dec()
		}
		util.LogInfo("monitor client %s disconnected", sub.id)
	}
}

// Publish sends ev to every subscriber. A subscriber whose outbox is full
// misses the event; Publish never blocks on a slow client.
func (s *Server) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		util.LogError("failed to marshal event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		select {
		case sub.outbox <- data:
		default:
			util.Logf("[%s] outbox full, event dropped", sub.id)
		}
	}
}

// Subscribers returns the number of connected WebSocket clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close stops the HTTP server and disconnects every subscriber.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.http != nil {
			s.http.Close()
		}

		s.mu.Lock()
		s.closed = true
		subs := make([]*subscriber, 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
		s.mu.Unlock()

		// Handlers observe the closed conn and remove themselves.
		for _, sub := range subs {
			sub.close()
		}
	})
}

// GeneratePIN returns a random numeric PIN of the specified length.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
