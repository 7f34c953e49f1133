// Package quic implements the transport connection primitive over QUIC.
// Peer identifiers are resolved to dial addresses through an AddrResolver;
// the protocol tag rides as the ALPN.
package quic

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/gossip-it/internal/protocol"
	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

// AddrResolver maps a peer identifier to a dialable address.
type AddrResolver interface {
	Resolve(ctx context.Context, peerID string) (string, error)
}

// AddrMap is a fixed in-memory resolver, enough for tests and static
// bootstrap configurations.
type AddrMap map[string]string

func (m AddrMap) Resolve(_ context.Context, peerID string) (string, error) {
	addr, ok := m[peerID]
	if !ok {
		return "", fmt.Errorf("no known address for peer %s", peerID)
	}
	return addr, nil
}

type Transport struct {
	listener *quic.Listener
	resolver AddrResolver
	logger   *logrus.Logger

	incoming chan transport.Conn
	done     chan struct{}
	closeOne sync.Once
}

func NewTransport(listenAddr string, resolver AddrResolver, logger *logrus.Logger) (*Transport, error) {
	tlsConf, err := DefaultTLSConfig(protocol.ALPN)
	if err != nil {
		return nil, fmt.Errorf("building tls config: %w", err)
	}

	listener, err := quic.ListenAddr(listenAddr, tlsConf, DefaultQUICConfig())
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", listenAddr, err)
	}

	t := &Transport{
		listener: listener,
		resolver: resolver,
		logger:   logger,
		incoming: make(chan transport.Conn, 16),
		done:     make(chan struct{}),
	}
	go t.acceptLoop()
	return t, nil
}

func (t *Transport) LocalAddr() net.Addr {
	return t.listener.Addr()
}

func (t *Transport) acceptLoop() {
	for {
		qc, err := t.listener.Accept(context.Background())
		if err != nil {
			select {
			case <-t.done:
			default:
				t.logger.Warnf("Accept error: %v", err)
			}
			return
		}

		// Inbound identity is the remote address until the peer
		// introduces itself above the transport.
		conn := newConn(qc.RemoteAddr().String(), qc)
		select {
		case t.incoming <- conn:
		case <-t.done:
			_ = conn.Close()
			return
		}
	}
}

func (t *Transport) Connect(ctx context.Context, peerID string, proto string) (transport.Conn, error) {
	addr, err := t.resolver.Resolve(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("resolving peer %s: %w", peerID, err)
	}

	tlsConf, err := DefaultTLSConfig(proto)
	if err != nil {
		return nil, err
	}

	qc, err := quic.DialAddr(ctx, addr, tlsConf, DefaultQUICConfig())
	if err != nil {
		return nil, fmt.Errorf("dialing %s at %s: %w", peerID, addr, err)
	}

	return newConn(peerID, qc), nil
}

func (t *Transport) Accept() <-chan transport.Conn {
	return t.incoming
}

func (t *Transport) Close() error {
	var err error
	t.closeOne.Do(func() {
		close(t.done)
		err = t.listener.Close()
	})
	return err
}
