package protocol

import (
	"errors"
	"slices"
)

// IsControl reports whether a datagram carries the control family marker.
func IsControl(datagram []byte) bool {
	return len(datagram) > 0 && datagram[0]&0x80 != 0
}

// Decode deserializes one datagram of either family into a Packet.
//
// If a control payload is malformed, the returned Packet still carries the
// decoded control header and the error is a *MalformedPayloadError.
func Decode(datagram []byte) (*Packet, error) {
	if len(datagram) < HeaderSize {
		return nil, &InsufficientDataError{ExpectedMin: HeaderSize, Got: len(datagram)}
	}
	if err := checkPacketSize(len(datagram)); err != nil {
		return nil, err
	}

	if !IsControl(datagram) {
		h, err := DecodeDataHeader(datagram[:HeaderSize])
		if err != nil {
			return nil, err
		}
		pkt := &Packet{Data: h}
		if len(datagram) > HeaderSize {
			pkt.Body = slices.Clone(datagram[HeaderSize:])
		}
		return pkt, nil
	}

	h, payload, err := DecodeControlHeader(datagram)
	if err != nil {
		var malformed *MalformedPayloadError
		if errors.As(err, &malformed) {
			return &Packet{IsControl: true, Control: h}, err
		}
		return nil, err
	}
	return &Packet{IsControl: true, Control: h, Payload: payload}, nil
}

// Encode serializes a Packet into a datagram.
func Encode(pkt *Packet) ([]byte, error) {
	if pkt.IsControl {
		return EncodeControlHeader(pkt.Control, pkt.Payload)
	}
	size := HeaderSize + len(pkt.Body)
	if err := checkPacketSize(size); err != nil {
		return nil, err
	}
	buf := appendDataHeader(make([]byte, 0, size), pkt.Data)
	return append(buf, pkt.Body...), nil
}
