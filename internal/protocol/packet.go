// Package protocol defines the UDT packet headers and their wire codec.
//
// Every datagram starts with a 16-byte header made of four big-endian 32-bit
// words. The most significant bit of the first word selects the family:
// 0 for data packets, 1 for control packets. Control packets are followed by
// a type-specific payload whose layout is decoded by DecodeControlPayload.
//
// All functions in this package are pure: they share no state and may be
// called concurrently on independent buffers.
package protocol

// HeaderSize is the fixed header size of both packet families: four 32-bit words.
const HeaderSize = 16

// MaxPacketSize bounds every accepted or produced datagram.
const MaxPacketSize = 64 * 1024

// Bit layout of the header words.
const (
	familyBit      uint32 = 1 << 31
	sequenceMask   uint32 = 0x7FFFFFFF
	positionShift         = 30
	positionMask   uint32 = 0x3
	inOrderBit     uint32 = 1 << 29
	messageMask    uint32 = 0x1FFFFFFF
	typeShift             = 16
	typeMask       uint32 = 0x7FFF
	customTypeMask uint32 = 0xFFFF
)

// SequenceNumber is a 31-bit packet sequence number.
type SequenceNumber uint32

// MaxSequenceNumber is the largest representable sequence number.
const MaxSequenceNumber SequenceNumber = SequenceNumber(sequenceMask)

// MessageNumber is a 29-bit message number.
type MessageNumber uint32

// MaxMessageNumber is the largest representable message number.
const MaxMessageNumber MessageNumber = MessageNumber(messageMask)

// DataPacketHeader is the decoded header of a data packet.
type DataPacketHeader struct {
	SequenceNumber SequenceNumber
	Position       DataPosition
	InOrder        bool // ordered delivery required
	MessageNumber  MessageNumber
	Timestamp      uint32 // microseconds, caller-defined origin
	SocketID       uint32
}

// ControlPacketHeader is the decoded common header of a control packet.
type ControlPacketHeader struct {
	Type ControlType
	// CustomType is the 16-bit sub-code. It is meaningful only for
	// ControlTypeCustom but is kept for every type so headers re-encode
	// byte for byte.
	CustomType     uint16
	AdditionalInfo uint32
	Timestamp      uint32
	SocketID       uint32
}

// Packet is one decoded datagram of either family.
type Packet struct {
	IsControl bool

	// Data family.
	Data DataPacketHeader
	Body []byte // application bytes following the data header

	// Control family.
	Control ControlPacketHeader
	Payload ControlPayload
}

// SocketID returns the destination socket id of whichever header is set.
func (p *Packet) SocketID() uint32 {
	if p.IsControl {
		return p.Control.SocketID
	}
	return p.Data.SocketID
}

// Timestamp returns the timestamp of whichever header is set.
func (p *Packet) Timestamp() uint32 {
	if p.IsControl {
		return p.Control.Timestamp
	}
	return p.Data.Timestamp
}
