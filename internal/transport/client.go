package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/1ureka/udt/internal/protocol"
	"github.com/1ureka/udt/internal/util"
)

// Client writes encoded packets to a single remote address. It is used to
// probe a listener and in tests.
type Client struct {
	conn net.Conn
	mu   sync.Mutex // serializes writes
}

// Dial opens a UDP socket connected to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Send encodes pkt and writes it as one datagram.
func (c *Client) Send(pkt *protocol.Packet) error {
	data, err := protocol.Encode(pkt)
	if err != nil {
		return fmt.Errorf("failed to encode packet: %w", err)
	}
	if err := c.SendRaw(data); err != nil {
		return err
	}
	util.Logf("sent %d bytes (control=%t, socketID=%08x)", len(data), pkt.IsControl, pkt.SocketID())
	return nil
}

// SendRaw writes b unchanged as one datagram.
func (c *Client) SendRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("failed to write datagram: %w", err)
	}
	return nil
}

// LocalAddr returns the local address of the socket.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
