package quic

import (
	"context"

	"github.com/quic-go/quic-go"

	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

type conn struct {
	peerID string
	qc     quic.Connection
}

func newConn(peerID string, qc quic.Connection) *conn {
	return &conn{peerID: peerID, qc: qc}
}

func (c *conn) PeerID() string {
	return c.peerID
}

func (c *conn) OpenStream(ctx context.Context) (transport.Stream, error) {
	return c.qc.OpenStreamSync(ctx)
}

func (c *conn) AcceptStream(ctx context.Context) (transport.Stream, error) {
	return c.qc.AcceptStream(ctx)
}

func (c *conn) Close() error {
	return c.qc.CloseWithError(0, "")
}
