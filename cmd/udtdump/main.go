// Command udtdump listens for UDT traffic and prints what it decodes.
//
// It binds a UDP port, decodes every datagram and logs it. Peers are accepted
// on their first handshake and are never answered. Decoded packets can also
// be streamed to WebSocket clients and counted on a Prometheus /metrics page.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-config, -listen, -monitor, -pin, -debug, -probe).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pterm/pterm"

	"github.com/1ureka/udt/internal/config"
	"github.com/1ureka/udt/internal/metrics"
	"github.com/1ureka/udt/internal/monitor"
	"github.com/1ureka/udt/internal/protocol"
	"github.com/1ureka/udt/internal/transport"
	"github.com/1ureka/udt/internal/util"
)

var version = "dev"

// flags holds the raw command-line values that may override the config file.
type flags struct {
	configPath string
	listen     string
	monitor    string
	pin        string
	debug      bool
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&f.listen, "listen", "", "UDP address to listen on, e.g. :9000")
	flag.StringVar(&f.monitor, "monitor", "", "Enable the monitor server on this TCP address, e.g. 127.0.0.1:8080")
	flag.StringVar(&f.pin, "pin", "", "Monitor PIN (random if empty)")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	probe := flag.String("probe", "", "Send a handshake, keep-alive and shutdown to this UDP address, then exit")
	flag.Parse()

	pterm.Info.Println(fmt.Sprintf("udtdump v%s", version))
	pterm.Println()

	if *probe != "" {
		if f.debug {
			util.EnableDebug()
		}
		if err := runProbe(ctx, *probe); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		util.LogSuccess("probe sent to %s", *probe)
		return
	}

	// No flags: interactive mode.
	if flag.NFlag() == 0 {
		f.listen = fmt.Sprintf(":%d", askPort("UDP port to listen on (1 ~ 65535)"))
	}

	cfg, err := resolveConfig(f)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if err := util.SetLevel(cfg.Log.Level); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("listener closed")
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// run starts the listener, the optional monitor and the stats reporter, and
// blocks until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	ln, err := transport.Listen(ctx, cfg.Listen.Addr, transport.Options{
		Backlog:        cfg.Listen.Backlog,
		ReadBufferSize: cfg.Listen.ReadBufferSize,
		IdleTimeout:    cfg.Listen.IdleTimeout,
		Metrics:        m,
	})
	if err != nil {
		return err
	}
	defer ln.Close()

	var mon *monitor.Server
	if cfg.Monitor.Enabled {
		pin := cfg.Monitor.PIN
		if pin == "" {
			pin = monitor.GeneratePIN(4)
		}

		mon = monitor.NewServer(pin, m, reg)
		port, err := mon.Start(cfg.Monitor.Addr)
		if err != nil {
			return err
		}
		defer mon.Close()

		host, _, _ := net.SplitHostPort(cfg.Monitor.Addr)
		if host == "" {
			host = "127.0.0.1"
		}
		pterm.DefaultSection.Println("Monitor")
		pterm.Info.Printfln("Events  : ws://%s/ws?pin=%s", net.JoinHostPort(host, strconv.Itoa(port)), pin)
		pterm.Info.Printfln("Metrics : http://%s/metrics", net.JoinHostPort(host, strconv.Itoa(port)))
		pterm.Println()
	}

	ln.OnPacket(func(p transport.Peer, pkt *protocol.Packet, err error) {
		logPacket(p, pkt, err)
		if mon != nil {
			mon.Publish(monitor.EventFromPacket(p, pkt, err))
		}
	})

	util.StartStatsReporter(ctx, cfg.Log.StatsInterval)
	util.LogSuccess("listening for UDT handshakes on %s", ln.Addr())

	select {
	case <-ctx.Done():
	case <-ln.Done():
	}
	return nil
}

// runProbe sends a minimal connection sequence to addr.
func runProbe(ctx context.Context, addr string) error {
	c, err := transport.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	var peer netip.Addr
	if ua, ok := c.LocalAddr().(*net.UDPAddr); ok {
		peer, _ = netip.AddrFromSlice(ua.IP)
	}

	for _, pkt := range probePackets(util.PeerID(c.LocalAddr()), peer) {
		if err := c.Send(pkt); err != nil {
			return fmt.Errorf("failed to send %s: %w", pkt.Control.Type, err)
		}
	}
	return nil
}

// probePackets builds a handshake, a keep-alive and a shutdown from socketID.
func probePackets(socketID uint32, peer netip.Addr) []*protocol.Packet {
	control := func(t protocol.ControlType, p protocol.ControlPayload) *protocol.Packet {
		return &protocol.Packet{
			IsControl: true,
			Control:   protocol.ControlPacketHeader{Type: t},
			Payload:   p,
		}
	}

	return []*protocol.Packet{
		control(protocol.ControlTypeHandshake, &protocol.Handshake{
			Version:         4,
			SocketType:      protocol.SocketTypeDatagram,
			InitialSequence: socketID & uint32(protocol.MaxSequenceNumber),
			MTU:             1500,
			MaxFlowWindow:   8192,
			ConnectionType:  protocol.ConnectionTypeRegular,
			SocketID:        socketID,
			PeerAddress:     peer.Unmap(),
		}),
		control(protocol.ControlTypeKeepAlive, &protocol.KeepAlive{}),
		control(protocol.ControlTypeShutdown, &protocol.Shutdown{}),
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// resolveConfig loads the config file (or defaults) and applies flag overrides.
func resolveConfig(f flags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if f.listen != "" {
		cfg.Listen.Addr = f.listen
	}
	if f.monitor != "" {
		cfg.Monitor.Enabled = true
		cfg.Monitor.Addr = f.monitor
	}
	if f.pin != "" {
		cfg.Monitor.PIN = f.pin
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func logPacket(p transport.Peer, pkt *protocol.Packet, err error) {
	switch {
	case pkt == nil:
		util.LogDebug("[%08x] dropped datagram: %v", p.ID, err)
	case err != nil:
		util.LogDebug("[%08x] %s with bad payload: %v", p.ID, pkt.Control.Type, err)
	case pkt.IsControl:
		util.Logf("[%08x] control %s socket=%08x info=%d", p.ID, pkt.Control.Type, pkt.Control.SocketID, pkt.Control.AdditionalInfo)
	default:
		util.Logf("[%08x] data seq=%d msg=%d %s socket=%08x len=%d",
			p.ID, pkt.Data.SequenceNumber, pkt.Data.MessageNumber, pkt.Data.Position, pkt.Data.SocketID, len(pkt.Body))
	}
}

// askPort prompts the user for a port number until a valid one is entered.
func askPort(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		if port, ok := parsePort(raw); ok {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}

func parsePort(raw string) (int, bool) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	return port, err == nil && port >= 1 && port <= 65535
}
