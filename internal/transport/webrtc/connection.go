package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

type connection struct {
	peerID      string
	pc          *webrtc.PeerConnection
	dc          *webrtc.DataChannel
	signaler    transport.Signaler
	recvChan    chan []byte
	ready       chan struct{}
	done        chan struct{}
	readyOnce   sync.Once
	closeOnce   sync.Once
	isInitiator bool
	onOpen      func()

	streamOnce sync.Once
	mu         sync.Mutex
}

func newConnection(peerID string, pc *webrtc.PeerConnection, signaler transport.Signaler, isInitiator bool) *connection {
	conn := &connection{
		peerID:      peerID,
		pc:          pc,
		signaler:    signaler,
		recvChan:    make(chan []byte, 256),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		isInitiator: isInitiator,
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			conn.closeOnce.Do(func() { close(conn.done) })
		}
	})

	if !isInitiator {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			conn.setupDataChannel(dc)
		})
	}

	return conn
}

func (c *connection) createDataChannel() error {
	ordered := true
	dc, err := c.pc.CreateDataChannel("gossip", &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	c.setupDataChannel(dc)
	return nil
}

func (c *connection) setupDataChannel(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		c.readyOnce.Do(func() { close(c.ready) })
		if c.onOpen != nil {
			c.onOpen()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		// The data channel is the byte stream the framing layer reads;
		// dropping a message here would corrupt it. Block until the reader
		// catches up or the connection dies.
		select {
		case c.recvChan <- msg.Data:
		case <-c.done:
		}
	})

	dc.OnClose(func() {
		c.closeOnce.Do(func() { close(c.done) })
	})
}

func (c *connection) handleSignal(payload []byte) error {
	sdp := string(payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pc.RemoteDescription() == nil {
		desc := webrtc.SessionDescription{SDP: sdp}
		if c.isInitiator {
			desc.Type = webrtc.SDPTypeAnswer
		} else {
			desc.Type = webrtc.SDPTypeOffer
		}

		if err := c.pc.SetRemoteDescription(desc); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}

		if !c.isInitiator {
			answer, err := c.pc.CreateAnswer(nil)
			if err != nil {
				return fmt.Errorf("failed to create answer: %w", err)
			}
			if err := c.pc.SetLocalDescription(answer); err != nil {
				return fmt.Errorf("failed to set local description: %w", err)
			}
			if err := c.signaler.SendSignal(context.Background(), c.peerID, []byte(answer.SDP)); err != nil {
				return fmt.Errorf("failed to send answer: %w", err)
			}
		}
	}

	return nil
}

func (c *connection) PeerID() string {
	return c.peerID
}

// OpenStream returns the connection's single logical stream. A data
// channel carries one ordered stream; a second open fails.
func (c *connection) OpenStream(ctx context.Context) (transport.Stream, error) {
	return c.stream(ctx)
}

func (c *connection) AcceptStream(ctx context.Context) (transport.Stream, error) {
	return c.stream(ctx)
}

func (c *connection) stream(ctx context.Context) (transport.Stream, error) {
	first := false
	c.streamOnce.Do(func() { first = true })
	if !first {
		return nil, errors.New("data channel transport carries a single stream")
	}

	select {
	case <-c.ready:
		return &channelStream{conn: c}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *connection) send(data []byte) error {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()

	if dc == nil {
		return errors.New("data channel not ready")
	}
	return dc.Send(data)
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dc != nil {
		_ = c.dc.Close()
	}
	return c.pc.Close()
}

// closed reports whether the connection has been torn down. A closed
// connection never becomes usable again and must be replaced.
func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// channelStream adapts the message-oriented data channel to an ordered
// byte stream.
type channelStream struct {
	conn    *connection
	pending []byte
}

func (s *channelStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		// Messages buffered before teardown still belong to the stream;
		// drain them before reporting EOF.
		select {
		case data := <-s.conn.recvChan:
			s.pending = data
		default:
			select {
			case data := <-s.conn.recvChan:
				s.pending = data
			case <-s.conn.done:
				return 0, io.EOF
			}
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *channelStream) Write(p []byte) (int, error) {
	// Data channel messages preserve order, so writing the chunk as one
	// message keeps stream semantics.
	buf := make([]byte, len(p))
	copy(buf, p)
	if err := s.conn.send(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *channelStream) Close() error {
	return s.conn.Close()
}
