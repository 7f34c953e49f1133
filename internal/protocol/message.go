package protocol

import "fmt"

// Message is a single unit of the gossip wire protocol. Concrete messages
// are plain structs; the envelope written to the wire carries the type tag
// so the receiving side knows what to decode the body into.
type Message interface {
	Type() MessageType
}

type PeerInfo struct {
	ID   string `cbor:"1,keyasint"`
	Addr string `cbor:"2,keyasint"`
}

type Ping struct {
	Nonce uint64 `cbor:"1,keyasint"`
}

type Pong struct {
	Nonce uint64 `cbor:"1,keyasint"`
}

// Join announces the sender to a peer it just connected to.
type Join struct {
	Peer PeerInfo `cbor:"1,keyasint"`
}

// Neighbor shares a sample of the sender's known peers.
type Neighbor struct {
	Peers []PeerInfo `cbor:"1,keyasint"`
}

// Gossip carries one broadcast payload for a topic.
type Gossip struct {
	Topic     string `cbor:"1,keyasint"`
	MessageID string `cbor:"2,keyasint"`
	Round     uint32 `cbor:"3,keyasint"`
	Data      []byte `cbor:"4,keyasint"`
}

// IHave advertises message IDs without their payloads.
type IHave struct {
	Topic      string   `cbor:"1,keyasint"`
	MessageIDs []string `cbor:"2,keyasint"`
}

// Graft asks the sender of an IHave for the full payload.
type Graft struct {
	Topic     string `cbor:"1,keyasint"`
	MessageID string `cbor:"2,keyasint"`
}

// Prune asks a peer to stop forwarding payloads for a topic.
type Prune struct {
	Topic string `cbor:"1,keyasint"`
}

type Disconnect struct {
	Reason string `cbor:"1,keyasint"`
}

func (*Ping) Type() MessageType       { return MsgPing }
func (*Pong) Type() MessageType       { return MsgPong }
func (*Join) Type() MessageType       { return MsgJoin }
func (*Neighbor) Type() MessageType   { return MsgNeighbor }
func (*Gossip) Type() MessageType     { return MsgGossip }
func (*IHave) Type() MessageType      { return MsgIHave }
func (*Graft) Type() MessageType      { return MsgGraft }
func (*Prune) Type() MessageType      { return MsgPrune }
func (*Disconnect) Type() MessageType { return MsgDisconnect }

func newMessage(t MessageType) (Message, error) {
	switch t {
	case MsgPing:
		return &Ping{}, nil
	case MsgPong:
		return &Pong{}, nil
	case MsgJoin:
		return &Join{}, nil
	case MsgNeighbor:
		return &Neighbor{}, nil
	case MsgGossip:
		return &Gossip{}, nil
	case MsgIHave:
		return &IHave{}, nil
	case MsgGraft:
		return &Graft{}, nil
	case MsgPrune:
		return &Prune{}, nil
	case MsgDisconnect:
		return &Disconnect{}, nil
	default:
		return nil, fmt.Errorf("unknown message type 0x%04x", uint16(t))
	}
}
