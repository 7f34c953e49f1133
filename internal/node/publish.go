package node

import (
	"context"

	"github.com/google/uuid"

	"github.com/rudransh-shrivastava/gossip-it/internal/protocol"
)

type publishReq struct {
	topic string
	data  []byte
}

// Publish broadcasts data under topic to every connected peer. It hands
// the message to the driving loop; delivery is best effort per peer.
func (n *Node) Publish(ctx context.Context, topic string, data []byte) error {
	select {
	case n.publishCh <- publishReq{topic: topic, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) handlePublish(req publishReq) {
	msg := &protocol.Gossip{
		Topic:     req.topic,
		MessageID: uuid.NewString(),
		Round:     0,
		Data:      req.data,
	}
	n.markSeen(msg.MessageID, msg)

	for peer, pc := range n.conns {
		if err := n.send(pc, msg); err != nil {
			n.logger.Warnf("Publish to %s failed: %v", peer, err)
			n.dropConn(peer)
		}
	}
}
