package protocol

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// ControlPayload is the type-specific part of a control packet.
type ControlPayload interface {
	// Type is the control type this payload belongs to.
	Type() ControlType
	// Len is the encoded size in bytes.
	Len() int
	// AppendTo appends the wire form to b.
	AppendTo(b []byte) []byte
}

const (
	handshakeLen      = 48
	fullAckLen        = 24
	lightAckLen       = 4
	shutdownLen       = 4
	msgDropRequestLen = 8
)

type payloadDecoder func(b []byte) (ControlPayload, error)

var payloadDecoders = map[ControlType]payloadDecoder{
	ControlTypeHandshake:      decodeHandshake,
	ControlTypeKeepAlive:      empty(ControlTypeKeepAlive, func() ControlPayload { return &KeepAlive{} }),
	ControlTypeAck:            decodeAck,
	ControlTypeNegativeAck:    decodeNegativeAck,
	ControlTypeUnused:         empty(ControlTypeUnused, func() ControlPayload { return &Unused{} }),
	ControlTypeShutdown:       decodeShutdown,
	ControlTypeAckAck:         empty(ControlTypeAckAck, func() ControlPayload { return &AckAck{} }),
	ControlTypeMsgDropRequest: decodeMsgDropRequest,
}

// DecodeControlPayload interprets b as the payload of a control packet of type t.
// Custom and unknown types are returned as opaque copies of b.
func DecodeControlPayload(t ControlType, b []byte) (ControlPayload, error) {
	if err := checkPacketSize(HeaderSize + len(b)); err != nil {
		return nil, err
	}
	if dec, ok := payloadDecoders[t]; ok {
		return dec(b)
	}
	if t == ControlTypeCustom {
		return &Custom{Data: slices.Clone(b)}, nil
	}
	return &Unknown{Code: t, Data: slices.Clone(b)}, nil
}

func expectLen(t ControlType, b []byte, n int) error {
	if len(b) != n {
		return &MalformedPayloadError{Type: t, Expected: n, Observed: len(b)}
	}
	return nil
}

func word(b []byte, i int) uint32 {
	return binary.BigEndian.Uint32(b[i*4 : i*4+4])
}

func seqWord(b []byte, i int) SequenceNumber {
	return SequenceNumber(word(b, i) & sequenceMask)
}

// checkSeqWords rejects sequence number words with the top bit set. Masking
// them instead would lose a bit that the encoder cannot restore.
func checkSeqWords(t ControlType, b []byte, idx ...int) error {
	for _, i := range idx {
		if word(b, i)&familyBit != 0 {
			return &MalformedPayloadError{
				Type:     t,
				Expected: len(b),
				Observed: len(b),
				Detail:   fmt.Sprintf("sequence number word %d (0x%08X) has the top bit set", i, word(b, i)),
			}
		}
	}
	return nil
}

func appendSeq(b []byte, s SequenceNumber) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(s)&sequenceMask)
}

func empty(t ControlType, mk func() ControlPayload) payloadDecoder {
	return func(b []byte) (ControlPayload, error) {
		if err := expectLen(t, b, 0); err != nil {
			return nil, err
		}
		return mk(), nil
	}
}

// KeepAlive carries no payload.
type KeepAlive struct{}

func (*KeepAlive) Type() ControlType { return ControlTypeKeepAlive }
func (*KeepAlive) Len() int { return 0 }
func (*KeepAlive) AppendTo(b []byte) []byte { return b }

// Unused carries no payload.
type Unused struct{}

func (*Unused) Type() ControlType { return ControlTypeUnused }
func (*Unused) Len() int { return 0 }
func (*Unused) AppendTo(b []byte) []byte { return b }

// AckAck carries no payload; the acknowledged ACK id travels in the header's
// AdditionalInfo field.
type AckAck struct{}

func (*AckAck) Type() ControlType { return ControlTypeAckAck }
func (*AckAck) Len() int { return 0 }
func (*AckAck) AppendTo(b []byte) []byte { return b }

// Ack acknowledges every packet before SequenceNumber. A light ACK carries
// only the sequence number; the statistics fields are zero.
type Ack struct {
	SequenceNumber   SequenceNumber
	RTT              uint32 // microseconds
	RTTVariance      uint32 // microseconds
	AvailableBuffer  uint32 // packets
	PacketsPerSecond uint32 // receiving rate
	LinkCapacity     uint32 // packets per second
	Light            bool
}

func decodeAck(b []byte) (ControlPayload, error) {
	if len(b) == lightAckLen || len(b) == fullAckLen {
		if err := checkSeqWords(ControlTypeAck, b, 0); err != nil {
			return nil, err
		}
	}
	switch len(b) {
	case lightAckLen:
		return &Ack{SequenceNumber: seqWord(b, 0), Light: true}, nil
	case fullAckLen:
		return &Ack{
			SequenceNumber:   seqWord(b, 0),
			RTT:              word(b, 1),
			RTTVariance:      word(b, 2),
			AvailableBuffer:  word(b, 3),
			PacketsPerSecond: word(b, 4),
			LinkCapacity:     word(b, 5),
		}, nil
	default:
		return nil, &MalformedPayloadError{Type: ControlTypeAck, Expected: fullAckLen, Observed: len(b)}
	}
}

func (*Ack) Type() ControlType { return ControlTypeAck }

func (a *Ack) Len() int {
	if a.Light {
		return lightAckLen
	}
	return fullAckLen
}

func (a *Ack) AppendTo(b []byte) []byte {
	b = appendSeq(b, a.SequenceNumber)
	if a.Light {
		return b
	}
	b = binary.BigEndian.AppendUint32(b, a.RTT)
	b = binary.BigEndian.AppendUint32(b, a.RTTVariance)
	b = binary.BigEndian.AppendUint32(b, a.AvailableBuffer)
	b = binary.BigEndian.AppendUint32(b, a.PacketsPerSecond)
	b = binary.BigEndian.AppendUint32(b, a.LinkCapacity)
	return b
}

// Shutdown closes the connection.
type Shutdown struct {
	SequenceNumber SequenceNumber
}

func decodeShutdown(b []byte) (ControlPayload, error) {
	if err := expectLen(ControlTypeShutdown, b, shutdownLen); err != nil {
		return nil, err
	}
	if err := checkSeqWords(ControlTypeShutdown, b, 0); err != nil {
		return nil, err
	}
	return &Shutdown{SequenceNumber: seqWord(b, 0)}, nil
}

func (*Shutdown) Type() ControlType { return ControlTypeShutdown }
func (*Shutdown) Len() int { return shutdownLen }

func (s *Shutdown) AppendTo(b []byte) []byte {
	return appendSeq(b, s.SequenceNumber)
}

// MsgDropRequest asks the receiver to drop a message spanning the given
// sequence numbers. The message number travels in AdditionalInfo.
type MsgDropRequest struct {
	FirstSequence SequenceNumber
	LastSequence  SequenceNumber
}

func decodeMsgDropRequest(b []byte) (ControlPayload, error) {
	if err := expectLen(ControlTypeMsgDropRequest, b, msgDropRequestLen); err != nil {
		return nil, err
	}
	if err := checkSeqWords(ControlTypeMsgDropRequest, b, 0, 1); err != nil {
		return nil, err
	}
	return &MsgDropRequest{FirstSequence: seqWord(b, 0), LastSequence: seqWord(b, 1)}, nil
}

func (*MsgDropRequest) Type() ControlType { return ControlTypeMsgDropRequest }
func (*MsgDropRequest) Len() int { return msgDropRequestLen }

func (m *MsgDropRequest) AppendTo(b []byte) []byte {
	b = appendSeq(b, m.FirstSequence)
	return appendSeq(b, m.LastSequence)
}

// Custom is the opaque payload of a user-defined control packet. The header's
// CustomType tells the caller how to read it.
type Custom struct {
	Data []byte
}

func (*Custom) Type() ControlType { return ControlTypeCustom }
func (c *Custom) Len() int { return len(c.Data) }
func (c *Custom) AppendTo(b []byte) []byte { return append(b, c.Data...) }

// Unknown is the untouched payload of a control type this package does not know.
type Unknown struct {
	Code ControlType
	Data []byte
}

func (u *Unknown) Type() ControlType { return u.Code }
func (u *Unknown) Len() int { return len(u.Data) }
func (u *Unknown) AppendTo(b []byte) []byte { return append(b, u.Data...) }
