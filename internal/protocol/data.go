package protocol

import "encoding/binary"

// DecodeDataHeader decodes a 16-byte data packet header.
func DecodeDataHeader(b []byte) (DataPacketHeader, error) {
	if len(b) != HeaderSize {
		return DataPacketHeader{}, &InsufficientDataError{ExpectedMin: HeaderSize, Got: len(b)}
	}

	w1 := binary.BigEndian.Uint32(b[0:4])
	if w1&familyBit != 0 {
		return DataPacketHeader{}, &WrongPacketFamilyError{ExpectedBit: 0}
	}
	w2 := binary.BigEndian.Uint32(b[4:8])

	return DataPacketHeader{
		SequenceNumber: SequenceNumber(w1 & sequenceMask),
		Position:       positionFromBits(w2 >> positionShift),
		InOrder:        w2&inOrderBit != 0,
		MessageNumber:  MessageNumber(w2 & messageMask),
		Timestamp:      binary.BigEndian.Uint32(b[8:12]),
		SocketID:       binary.BigEndian.Uint32(b[12:16]),
	}, nil
}

// EncodeDataHeader serializes h into a 16-byte header.
// Sequence and message numbers wider than their fields are truncated.
func EncodeDataHeader(h DataPacketHeader) []byte {
	return appendDataHeader(make([]byte, 0, HeaderSize), h)
}

func appendDataHeader(buf []byte, h DataPacketHeader) []byte {
	w2 := h.Position.bits()<<positionShift | uint32(h.MessageNumber)&messageMask
	if h.InOrder {
		w2 |= inOrderBit
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(h.SequenceNumber)&sequenceMask)
	buf = binary.BigEndian.AppendUint32(buf, w2)
	buf = binary.BigEndian.AppendUint32(buf, h.Timestamp)
	buf = binary.BigEndian.AppendUint32(buf, h.SocketID)
	return buf
}
