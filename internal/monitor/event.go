package monitor

import (
	"fmt"
	"time"

	"github.com/1ureka/udt/internal/metrics"
	"github.com/1ureka/udt/internal/protocol"
	"github.com/1ureka/udt/internal/transport"
)

// Event is the JSON summary of one received datagram.
type Event struct {
	Time      time.Time `json:"time"`
	Peer      string    `json:"peer"`
	Family    string    `json:"family,omitempty"` // "data" or "control"; empty if the header failed
	Type      string    `json:"type,omitempty"`
	SocketID  uint32    `json:"socket_id"`
	Timestamp uint32    `json:"timestamp"`

	// Data packets only.
	Sequence uint32 `json:"sequence,omitempty"`
	Message  uint32 `json:"message,omitempty"`
	Position string `json:"position,omitempty"`
	InOrder  bool   `json:"in_order,omitempty"`
	Size     int    `json:"size,omitempty"`

	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// EventFromPacket summarizes a delivery from the listener. pkt may be nil
// when the datagram could not be decoded at all.
func EventFromPacket(peer transport.Peer, pkt *protocol.Packet, err error) Event {
	ev := Event{Time: time.Now()}
	if peer.Addr != nil {
		ev.Peer = peer.Addr.String()
	}
	if err != nil {
		ev.Error = err.Error()
		ev.ErrorKind = metrics.ErrorKind(err)
	}
	if pkt == nil {
		return ev
	}

	ev.SocketID = pkt.SocketID()
	ev.Timestamp = pkt.Timestamp()

	if !pkt.IsControl {
		ev.Family = "data"
		ev.Sequence = uint32(pkt.Data.SequenceNumber)
		ev.Message = uint32(pkt.Data.MessageNumber)
		ev.Position = pkt.Data.Position.String()
		ev.InOrder = pkt.Data.InOrder
		ev.Size = len(pkt.Body)
		return ev
	}

	ev.Family = "control"
	ev.Type = pkt.Control.Type.String()
	if pkt.Payload != nil {
		ev.Size = pkt.Payload.Len()
		ev.Detail = describe(pkt.Control, pkt.Payload)
	}
	return ev
}

func describe(h protocol.ControlPacketHeader, p protocol.ControlPayload) string {
	switch p := p.(type) {
	case *protocol.Handshake:
		return fmt.Sprintf("version=%d socket=%s conn=%s isn=%d mtu=%d window=%d id=%08x peer=%s",
			p.Version, p.SocketType, p.ConnectionType, p.InitialSequence, p.MTU, p.MaxFlowWindow, p.SocketID, p.PeerAddress)
	case *protocol.Ack:
		if p.Light {
			return fmt.Sprintf("ack=%d id=%d light", p.SequenceNumber, h.AdditionalInfo)
		}
		return fmt.Sprintf("ack=%d id=%d rtt=%dus var=%dus buf=%d rate=%d cap=%d",
			p.SequenceNumber, h.AdditionalInfo, p.RTT, p.RTTVariance, p.AvailableBuffer, p.PacketsPerSecond, p.LinkCapacity)
	case *protocol.NegativeAck:
		return fmt.Sprintf("lost=%d ranges=%d", p.Lost(), len(p.Ranges))
	case *protocol.AckAck:
		return fmt.Sprintf("id=%d", h.AdditionalInfo)
	case *protocol.Shutdown:
		return fmt.Sprintf("seq=%d", p.SequenceNumber)
	case *protocol.MsgDropRequest:
		return fmt.Sprintf("msg=%d first=%d last=%d", h.AdditionalInfo, p.FirstSequence, p.LastSequence)
	case *protocol.Custom:
		return fmt.Sprintf("custom=%d len=%d", h.CustomType, len(p.Data))
	case *protocol.Unknown:
		return fmt.Sprintf("len=%d", len(p.Data))
	default:
		return ""
	}
}
