// Package webrtc implements the transport connection primitive over WebRTC
// data channels, for peers that cannot reach each other directly. Session
// descriptions travel through a Signaler; each connection carries a single
// logical stream over one ordered data channel.
package webrtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

type webrtcTransport struct {
	config      webrtc.Configuration
	signaler    transport.Signaler
	logger      *logrus.Logger
	connections map[string]*connection
	incoming    chan transport.Conn
	done        chan struct{}
	closeOne    sync.Once
	mu          sync.RWMutex
}

// New creates a WebRTC transport. Signals received through the signaler
// are consumed until the transport is closed.
func New(signaler transport.Signaler, stunServers []string, logger *logrus.Logger) transport.Transport {
	if len(stunServers) == 0 {
		stunServers = defaultSTUNServers
	}
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, server := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{server}})
	}

	t := &webrtcTransport{
		config: webrtc.Configuration{
			ICEServers:         iceServers,
			ICETransportPolicy: webrtc.ICETransportPolicyAll,
		},
		signaler:    signaler,
		logger:      logger,
		connections: make(map[string]*connection),
		incoming:    make(chan transport.Conn, 16),
		done:        make(chan struct{}),
	}
	go t.signalLoop()
	return t
}

func (t *webrtcTransport) signalLoop() {
	for {
		select {
		case <-t.done:
			return
		case signal, ok := <-t.signaler.RecvSignal():
			if !ok {
				return
			}
			if err := t.handleSignal(signal); err != nil {
				t.logger.Warnf("Failed to handle signal from %s: %v", signal.PeerID, err)
			}
		}
	}
}

func (t *webrtcTransport) Connect(ctx context.Context, peerID string, _ string) (transport.Conn, error) {
	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	conn := newConnection(peerID, pc, t.signaler, true)

	t.mu.Lock()
	t.connections[peerID] = conn
	t.mu.Unlock()

	// A stale registered connection would swallow the peer's future
	// signals, so every failure below must tear the entry down again.
	if err := conn.createDataChannel(); err != nil {
		_ = conn.Close()
		t.forget(peerID)
		return nil, err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = conn.Close()
		t.forget(peerID)
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	if err := pc.SetLocalDescription(offer); err != nil {
		_ = conn.Close()
		t.forget(peerID)
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	if err := t.signaler.SendSignal(ctx, peerID, []byte(offer.SDP)); err != nil {
		_ = conn.Close()
		t.forget(peerID)
		return nil, fmt.Errorf("failed to send offer: %w", err)
	}

	select {
	case <-conn.ready:
		return conn, nil
	case <-ctx.Done():
		_ = conn.Close()
		t.forget(peerID)
		return nil, ctx.Err()
	}
}

func (t *webrtcTransport) Accept() <-chan transport.Conn {
	return t.incoming
}

func (t *webrtcTransport) handleSignal(signal transport.Signal) error {
	t.mu.RLock()
	conn, exists := t.connections[signal.PeerID]
	t.mu.RUnlock()

	if exists && conn.closed() {
		t.forget(signal.PeerID)
		exists = false
	}

	if !exists {
		pc, err := webrtc.NewPeerConnection(t.config)
		if err != nil {
			return fmt.Errorf("failed to create peer connection: %w", err)
		}

		conn = newConnection(signal.PeerID, pc, t.signaler, false)
		conn.onOpen = func() {
			select {
			case t.incoming <- conn:
			case <-t.done:
			}
		}

		t.mu.Lock()
		t.connections[signal.PeerID] = conn
		t.mu.Unlock()
	}

	return conn.handleSignal(signal.Payload)
}

func (t *webrtcTransport) forget(peerID string) {
	t.mu.Lock()
	delete(t.connections, peerID)
	t.mu.Unlock()
}

func (t *webrtcTransport) Close() error {
	t.closeOne.Do(func() {
		close(t.done)
		t.mu.Lock()
		for _, conn := range t.connections {
			_ = conn.Close()
		}
		t.connections = make(map[string]*connection)
		t.mu.Unlock()
	})
	return nil
}
