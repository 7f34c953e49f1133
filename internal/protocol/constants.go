package protocol

const (
	// MaxMessageSize is the protocol ceiling for a single encoded message.
	// Both ends enforce it; it is fixed, not negotiated.
	MaxMessageSize = 1024 * 1024

	// ALPN is the default protocol tag presented during connection setup.
	ALPN = "gossip-it/0"

	// LengthPrefixSize is the size of the frame header on the wire.
	LengthPrefixSize = 4
)

type MessageType uint16

const (
	MsgPing       MessageType = 0x0001
	MsgPong       MessageType = 0x0002
	MsgJoin       MessageType = 0x0010
	MsgNeighbor   MessageType = 0x0011
	MsgGossip     MessageType = 0x0020
	MsgIHave      MessageType = 0x0021
	MsgGraft      MessageType = 0x0022
	MsgPrune      MessageType = 0x0023
	MsgDisconnect MessageType = 0x00F0
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgJoin:
		return "JOIN"
	case MsgNeighbor:
		return "NEIGHBOR"
	case MsgGossip:
		return "GOSSIP"
	case MsgIHave:
		return "IHAVE"
	case MsgGraft:
		return "GRAFT"
	case MsgPrune:
		return "PRUNE"
	case MsgDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}
