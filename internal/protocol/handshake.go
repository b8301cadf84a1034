package protocol

import (
	"encoding/binary"
	"net/netip"
)

const peerAddressLen = 16

// Handshake is the connection setup payload.
type Handshake struct {
	Version         uint32
	SocketType      SocketType
	InitialSequence uint32 // carried as a raw 32-bit word
	MTU             uint32 // maximum packet size, bytes
	MaxFlowWindow   uint32 // packets
	ConnectionType  ConnectionType
	SocketID        uint32
	SynCookie       uint32
	// PeerAddress is sent as 16 bytes. An IPv4 address occupies the first
	// four and leaves the rest zero. Any other address, including an
	// IPv4-mapped IPv6 one, is written as its 16-byte form. The zero Addr is
	// written as 16 zero bytes and therefore decodes as 0.0.0.0.
	PeerAddress netip.Addr
}

func decodeHandshake(b []byte) (ControlPayload, error) {
	if err := expectLen(ControlTypeHandshake, b, handshakeLen); err != nil {
		return nil, err
	}
	return &Handshake{
		Version:         word(b, 0),
		SocketType:      SocketType(word(b, 1)),
		InitialSequence: word(b, 2),
		MTU:             word(b, 3),
		MaxFlowWindow:   word(b, 4),
		ConnectionType:  ConnectionType(word(b, 5)),
		SocketID:        word(b, 6),
		SynCookie:       word(b, 7),
		PeerAddress:     decodePeerAddress(b[handshakeLen-peerAddressLen:]),
	}, nil
}

func decodePeerAddress(b []byte) netip.Addr {
	for _, v := range b[4:peerAddressLen] {
		if v != 0 {
			return netip.AddrFrom16([16]byte(b[:peerAddressLen]))
		}
	}
	return netip.AddrFrom4([4]byte(b[:4]))
}

func appendPeerAddress(b []byte, addr netip.Addr) []byte {
	var raw [peerAddressLen]byte
	switch {
	case addr.Is4():
		v4 := addr.As4()
		copy(raw[:], v4[:])
	case addr.Is6():
		raw = addr.As16()
	}
	return append(b, raw[:]...)
}

func (*Handshake) Type() ControlType { return ControlTypeHandshake }
func (*Handshake) Len() int { return handshakeLen }

func (h *Handshake) AppendTo(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, h.Version)
	b = binary.BigEndian.AppendUint32(b, uint32(h.SocketType))
	b = binary.BigEndian.AppendUint32(b, h.InitialSequence)
	b = binary.BigEndian.AppendUint32(b, h.MTU)
	b = binary.BigEndian.AppendUint32(b, h.MaxFlowWindow)
	b = binary.BigEndian.AppendUint32(b, uint32(h.ConnectionType))
	b = binary.BigEndian.AppendUint32(b, h.SocketID)
	b = binary.BigEndian.AppendUint32(b, h.SynCookie)
	return appendPeerAddress(b, h.PeerAddress)
}
