package protocol

import (
	"encoding/binary"
	"fmt"
)

// SplitControlHeader decodes the common control header and returns the
// type-specific payload that follows it. The payload aliases b.
func SplitControlHeader(b []byte) (ControlPacketHeader, []byte, error) {
	if len(b) < HeaderSize {
		return ControlPacketHeader{}, nil, &InsufficientDataError{ExpectedMin: HeaderSize, Got: len(b)}
	}
	if err := checkPacketSize(len(b)); err != nil {
		return ControlPacketHeader{}, nil, err
	}

	w1 := binary.BigEndian.Uint32(b[0:4])
	if w1&familyBit == 0 {
		return ControlPacketHeader{}, nil, &WrongPacketFamilyError{ExpectedBit: 1}
	}

	h := ControlPacketHeader{
		Type:           controlTypeFromCode(w1 >> typeShift),
		CustomType:     uint16(w1 & customTypeMask),
		AdditionalInfo: binary.BigEndian.Uint32(b[4:8]),
		Timestamp:      binary.BigEndian.Uint32(b[8:12]),
		SocketID:       binary.BigEndian.Uint32(b[12:16]),
	}
	return h, b[HeaderSize:], nil
}

// DecodeControlHeader decodes a full control packet: the common header and
// its typed payload. When only the payload is malformed, the header is still
// returned alongside a *MalformedPayloadError.
func DecodeControlHeader(b []byte) (ControlPacketHeader, ControlPayload, error) {
	h, rest, err := SplitControlHeader(b)
	if err != nil {
		return ControlPacketHeader{}, nil, err
	}
	p, err := DecodeControlPayload(h.Type, rest)
	if err != nil {
		return h, nil, err
	}
	return h, p, nil
}

// EncodeControlHeader serializes h followed by p. A nil payload encodes as
// an empty one. The payload variant must agree with h.Type.
func EncodeControlHeader(h ControlPacketHeader, p ControlPayload) ([]byte, error) {
	size := HeaderSize
	if p != nil {
		if p.Type() != h.Type {
			return nil, fmt.Errorf("%w: header %s, payload %s", ErrPayloadTypeMismatch, h.Type, p.Type())
		}
		size += p.Len()
	}
	if err := checkPacketSize(size); err != nil {
		return nil, err
	}

	buf := appendControlHeader(make([]byte, 0, size), h)
	if p != nil {
		buf = p.AppendTo(buf)
	}
	return buf, nil
}

func appendControlHeader(buf []byte, h ControlPacketHeader) []byte {
	w1 := familyBit | (uint32(h.Type)&typeMask)<<typeShift | uint32(h.CustomType)
	buf = binary.BigEndian.AppendUint32(buf, w1)
	buf = binary.BigEndian.AppendUint32(buf, h.AdditionalInfo)
	buf = binary.BigEndian.AppendUint32(buf, h.Timestamp)
	buf = binary.BigEndian.AppendUint32(buf, h.SocketID)
	return buf
}
