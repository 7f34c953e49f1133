// Package transport defines the connection primitive the dialer and the
// gossip layer are built on. Implementations provide reliable, ordered
// byte streams per logical connection and a stable per-peer identifier.
package transport

import (
	"context"
	"io"
)

type Transport interface {
	// Connect establishes an outbound connection to peerID, presenting
	// proto as the protocol tag. It must honor ctx cancellation.
	Connect(ctx context.Context, peerID string, proto string) (Conn, error)
	Accept() <-chan Conn
	Close() error
}

type Conn interface {
	PeerID() string
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)
	Close() error
}

// Stream is one ordered byte stream within a connection.
type Stream interface {
	io.ReadWriteCloser
}

// Signaler carries out-of-band rendezvous payloads for transports that
// need a third party to establish connectivity (e.g. WebRTC).
type Signaler interface {
	SendSignal(ctx context.Context, peerID string, signal []byte) error
	RecvSignal() <-chan Signal
	io.Closer
}

type Signal struct {
	PeerID  string
	Payload []byte
}
