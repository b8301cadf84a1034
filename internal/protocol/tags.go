package protocol

import "fmt"

// DataPosition tells where a data packet sits inside its message.
// The two-bit field maps totally onto these four values.
type DataPosition uint8

const (
	PositionMiddle DataPosition = 0b00
	PositionLast   DataPosition = 0b01
	PositionFirst  DataPosition = 0b10
	PositionOnly   DataPosition = 0b11
)

// positionFromBits maps the low two bits to a position. Higher bits are ignored,
// so every input has exactly one result.
func positionFromBits(bits uint32) DataPosition {
	switch bits & positionMask {
	case 0b10:
		return PositionFirst
	case 0b01:
		return PositionLast
	case 0b11:
		return PositionOnly
	default:
		return PositionMiddle
	}
}

func (p DataPosition) bits() uint32 {
	return uint32(p) & positionMask
}

func (p DataPosition) String() string {
	switch p & DataPosition(positionMask) {
	case PositionFirst:
		return "First"
	case PositionLast:
		return "Last"
	case PositionOnly:
		return "Only"
	default:
		return "Middle"
	}
}

// ControlType is the 15-bit control packet type code.
// Codes outside the known set are carried as-is; see IsKnown.
type ControlType uint16

const (
	ControlTypeHandshake      ControlType = 0x0
	ControlTypeKeepAlive      ControlType = 0x1
	ControlTypeAck            ControlType = 0x2
	ControlTypeNegativeAck    ControlType = 0x3
	ControlTypeUnused         ControlType = 0x4
	ControlTypeShutdown       ControlType = 0x5
	ControlTypeAckAck         ControlType = 0x6
	ControlTypeMsgDropRequest ControlType = 0x7
	ControlTypeCustom         ControlType = 0x7FFF
)

// controlTypeFromCode masks a raw code to 15 bits. Unknown codes are kept.
func controlTypeFromCode(code uint32) ControlType {
	return ControlType(code & typeMask)
}

// IsKnown reports whether t is one of the defined control types.
func (t ControlType) IsKnown() bool {
	switch t {
	case ControlTypeHandshake, ControlTypeKeepAlive, ControlTypeAck,
		ControlTypeNegativeAck, ControlTypeUnused, ControlTypeShutdown,
		ControlTypeAckAck, ControlTypeMsgDropRequest, ControlTypeCustom:
		return true
	default:
		return false
	}
}

func (t ControlType) String() string {
	switch t {
	case ControlTypeHandshake:
		return "Handshake"
	case ControlTypeKeepAlive:
		return "KeepAlive"
	case ControlTypeAck:
		return "Ack"
	case ControlTypeNegativeAck:
		return "NegativeAck"
	case ControlTypeUnused:
		return "Unused"
	case ControlTypeShutdown:
		return "Shutdown"
	case ControlTypeAckAck:
		return "AckAck"
	case ControlTypeMsgDropRequest:
		return "MsgDropRequest"
	case ControlTypeCustom:
		return "Custom"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// SocketType is the handshake socket type field.
type SocketType uint32

const (
	SocketTypeStream   SocketType = 1
	SocketTypeDatagram SocketType = 2
)

func (s SocketType) IsKnown() bool {
	return s == SocketTypeStream || s == SocketTypeDatagram
}

func (s SocketType) String() string {
	switch s {
	case SocketTypeStream:
		return "Stream"
	case SocketTypeDatagram:
		return "Datagram"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(s))
	}
}

// ConnectionType is the handshake request type field.
type ConnectionType uint32

const (
	ConnectionTypeRendezvous ConnectionType = 0
	ConnectionTypeRegular    ConnectionType = 1
)

func (c ConnectionType) IsKnown() bool {
	return c == ConnectionTypeRendezvous || c == ConnectionTypeRegular
}

func (c ConnectionType) String() string {
	switch c {
	case ConnectionTypeRegular:
		return "Regular"
	case ConnectionTypeRendezvous:
		return "Rendezvous"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(c))
	}
}
