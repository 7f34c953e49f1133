package webrtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

// signalEnvelope is the rendezvous server's relay format.
type signalEnvelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Payload []byte `json:"payload"`
}

// WSSignaler exchanges session descriptions through a websocket rendezvous
// server that relays envelopes between registered peers.
type WSSignaler struct {
	conn     *websocket.Conn
	selfID   string
	logger   *logrus.Logger
	recv     chan transport.Signal
	writeMu  sync.Mutex
	closeOne sync.Once
}

func NewWSSignaler(serverURL, selfID string, logger *logrus.Logger) (*WSSignaler, error) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing rendezvous server: %w", err)
	}

	s := &WSSignaler{
		conn:   conn,
		selfID: selfID,
		logger: logger,
		recv:   make(chan transport.Signal, 16),
	}

	// Registration is just the first envelope with an empty target.
	if err := conn.WriteJSON(&signalEnvelope{From: selfID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("registering with rendezvous server: %w", err)
	}

	go s.readLoop()
	return s, nil
}

func (s *WSSignaler) readLoop() {
	defer close(s.recv)
	for {
		var env signalEnvelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnf("Rendezvous read error: %v", err)
			}
			return
		}
		s.recv <- transport.Signal{PeerID: env.From, Payload: env.Payload}
	}
}

func (s *WSSignaler) SendSignal(_ context.Context, peerID string, signal []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(&signalEnvelope{From: s.selfID, To: peerID, Payload: signal})
}

func (s *WSSignaler) RecvSignal() <-chan transport.Signal {
	return s.recv
}

func (s *WSSignaler) Close() error {
	var err error
	s.closeOne.Do(func() {
		err = s.conn.Close()
	})
	return err
}
