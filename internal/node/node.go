// Package node drives the gossip transport substrate: it owns one dialer,
// one timer multiplexer and the transport, and reacts to whichever of them
// becomes ready first. Retry and forwarding policy lives here; the
// components underneath never retry on their own.
package node

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/gossip-it/internal/dialer"
	"github.com/rudransh-shrivastava/gossip-it/internal/logger"
	"github.com/rudransh-shrivastava/gossip-it/internal/protocol"
	"github.com/rudransh-shrivastava/gossip-it/internal/store"
	"github.com/rudransh-shrivastava/gossip-it/internal/timers"
	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
	"github.com/rudransh-shrivastava/gossip-it/internal/wire"
)

const (
	heartbeatInterval = 5 * time.Second
	redialBaseDelay   = time.Second
	maxDialAttempts   = 5
	messageCacheSize  = 1024
)

type timerKind int

const (
	timerHeartbeat timerKind = iota
	timerRedial
)

type timerKey struct {
	Peer string
	Kind timerKind
}

// Event is a gossip payload delivered to the local subscriber.
type Event struct {
	From  string
	Topic string
	Data  []byte
}

type Options struct {
	// ID is the local peer identifier; a random one is generated when
	// empty.
	ID string

	// Peers resolves and persists peer addresses.
	Peers *store.PeerStore

	// Transport provides outbound and inbound connections.
	Transport transport.Transport

	// Bootstrap lists peers to dial on startup, as "peerID@addr".
	Bootstrap []string

	Logger *logrus.Logger
}

// peerConn is one live connection. id starts as the transport identifier
// and is re-keyed when the peer announces itself in a Join.
type peerConn struct {
	id      string
	conn    transport.Conn
	stream  transport.Stream
	scratch bytes.Buffer
}

type inboundFrame struct {
	pc  *peerConn
	msg protocol.Message
	err error
}

type Node struct {
	id     string
	logger *logrus.Logger

	peers     *store.PeerStore
	transport transport.Transport
	dialer    *dialer.Dialer
	timers    *timers.Timers[timerKey]
	codec     protocol.Codec

	conns     map[string]*peerConn
	attempts  map[string]int
	bootstrap []string

	frames    chan inboundFrame
	events    chan Event
	publishCh chan publishReq
	done      chan struct{}

	// seen and cache implement the gossip dedup and IHave/Graft recovery.
	seen  map[string]bool
	cache map[string]*protocol.Gossip
}

func New(opts Options) (*Node, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("node requires a transport")
	}
	if opts.Peers == nil {
		return nil, fmt.Errorf("node requires a peer store")
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	return &Node{
		id:        id,
		logger:    log,
		peers:     opts.Peers,
		transport: opts.Transport,
		dialer:    dialer.New(opts.Transport),
		timers:    timers.New[timerKey](),
		codec:     protocol.WireCodec(),
		conns:     make(map[string]*peerConn),
		attempts:  make(map[string]int),
		frames:    make(chan inboundFrame, 64),
		events:    make(chan Event, 64),
		publishCh: make(chan publishReq),
		done:      make(chan struct{}),
		bootstrap: opts.Bootstrap,
		seen:      make(map[string]bool),
		cache:     make(map[string]*protocol.Gossip),
	}, nil
}

func (n *Node) ID() string { return n.id }

// Events delivers gossip payloads received from the network.
func (n *Node) Events() <-chan Event { return n.events }

// Run drives the node until ctx is cancelled. All connection and timer
// state is owned by this goroutine; only the publish channel crosses in
// from outside.
func (n *Node) Run(ctx context.Context) error {
	for _, entry := range n.bootstrap {
		peerID, addr, err := SplitBootstrapEntry(entry)
		if err != nil {
			n.logger.Warnf("Skipping bootstrap entry %q: %v", entry, err)
			continue
		}
		if err := n.peers.Upsert(peerID, addr); err != nil {
			return fmt.Errorf("recording bootstrap peer: %w", err)
		}
		n.dialer.QueueDial(peerID, protocol.ALPN)
	}

	dialCh := make(chan dialer.Completion)
	go func() {
		for {
			res, err := n.dialer.Next(ctx)
			if err != nil {
				return
			}
			select {
			case dialCh <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	timerCh := make(chan []timers.Entry[timerKey])
	go func() {
		for {
			batch, err := n.timers.WaitAndDrain(ctx)
			if err != nil {
				return
			}
			select {
			case timerCh <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	n.logger.Infof("Node %s running", n.id)

	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			return ctx.Err()

		case res := <-dialCh:
			n.handleDialResult(ctx, res)

		case batch := <-timerCh:
			for _, entry := range batch {
				n.handleTimer(ctx, entry.Item)
			}

		case conn := <-n.transport.Accept():
			n.handleInbound(ctx, conn)

		case frame := <-n.frames:
			n.handleFrame(frame)

		case req := <-n.publishCh:
			n.handlePublish(req)
		}
	}
}

func (n *Node) shutdown() {
	close(n.done)
	for peer, pc := range n.conns {
		_ = n.send(pc, &protocol.Disconnect{Reason: "shutting down"})
		_ = pc.conn.Close()
		delete(n.conns, peer)
	}
	_ = n.transport.Close()
	n.logger.Infof("Node %s stopped", n.id)
}

func (n *Node) handleDialResult(ctx context.Context, res dialer.Completion) {
	switch {
	case res.Err == dialer.ErrDialCancelled:
		// A dial we no longer wanted; nothing to do.

	case res.Err != nil:
		n.attempts[res.Peer]++
		attempt := n.attempts[res.Peer]
		if attempt >= maxDialAttempts {
			n.logger.Warnf("Giving up on %s after %d attempts: %v", res.Peer, attempt, res.Err)
			delete(n.attempts, res.Peer)
			return
		}
		delay := RedialDelay(attempt, redialBaseDelay)
		n.logger.Debugf("Dial %s failed (attempt %d), retrying in %s: %v", res.Peer, attempt, delay, res.Err)
		n.timers.Insert(time.Now().Add(delay), timerKey{Peer: res.Peer, Kind: timerRedial})

	default:
		delete(n.attempts, res.Peer)
		stream, err := res.Conn.OpenStream(ctx)
		if err != nil {
			n.logger.Warnf("Opening stream to %s failed: %v", res.Peer, err)
			_ = res.Conn.Close()
			return
		}
		n.addConn(res.Peer, res.Conn, stream)
		pc := n.conns[res.Peer]
		if err := n.send(pc, &protocol.Join{Peer: protocol.PeerInfo{ID: n.id}}); err != nil {
			n.logger.Warnf("Join to %s failed: %v", res.Peer, err)
			n.dropConn(res.Peer)
			return
		}
		n.logger.Infof("Connected to %s", res.Peer)
	}
}

func (n *Node) handleInbound(ctx context.Context, conn transport.Conn) {
	if conn == nil {
		return
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		n.logger.Warnf("Accepting stream from %s failed: %v", conn.PeerID(), err)
		_ = conn.Close()
		return
	}
	n.addConn(conn.PeerID(), conn, stream)
	n.logger.Infof("Accepted connection from %s", conn.PeerID())
}

func (n *Node) addConn(peer string, conn transport.Conn, stream transport.Stream) {
	if old, ok := n.conns[peer]; ok {
		_ = old.conn.Close()
	}
	pc := &peerConn{id: peer, conn: conn, stream: stream}
	n.conns[peer] = pc
	n.timers.Insert(time.Now().Add(heartbeatInterval), timerKey{Peer: peer, Kind: timerHeartbeat})

	go n.readLoop(pc)
}

// readLoop feeds inbound frames into the driving loop. It is the only
// reader of the stream; the buffer persists across frames so pipelined
// messages survive boundaries. Once the node shuts down nobody drains
// the frames channel, so sends race against done.
func (n *Node) readLoop(pc *peerConn) {
	var buf bytes.Buffer
	for {
		msg, err := wire.ReadMessage(pc.stream, &buf, n.codec)
		select {
		case n.frames <- inboundFrame{pc: pc, msg: msg, err: err}:
		case <-n.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (n *Node) dropConn(peer string) {
	if pc, ok := n.conns[peer]; ok {
		_ = pc.conn.Close()
		delete(n.conns, peer)
	}
}

func (n *Node) send(pc *peerConn, msg protocol.Message) error {
	return wire.WriteMessage(pc.stream, &pc.scratch, n.codec, msg)
}

func (n *Node) handleTimer(ctx context.Context, key timerKey) {
	switch key.Kind {
	case timerHeartbeat:
		pc, ok := n.conns[key.Peer]
		if !ok {
			return
		}
		if err := n.send(pc, &protocol.Ping{Nonce: uint64(time.Now().UnixNano())}); err != nil {
			n.logger.Warnf("Heartbeat to %s failed: %v", key.Peer, err)
			n.dropConn(key.Peer)
			return
		}
		n.timers.Insert(time.Now().Add(heartbeatInterval), timerKey{Peer: key.Peer, Kind: timerHeartbeat})

	case timerRedial:
		if _, connected := n.conns[key.Peer]; connected || n.dialer.IsPending(key.Peer) {
			return
		}
		n.dialer.QueueDial(key.Peer, protocol.ALPN)
	}
}

func (n *Node) handleFrame(frame inboundFrame) {
	pc := frame.pc
	if cur, ok := n.conns[pc.id]; !ok || cur != pc {
		// A frame from a connection we already replaced or dropped.
		return
	}

	if frame.err != nil {
		if frame.err == io.EOF {
			n.logger.Infof("Peer %s disconnected", pc.id)
		} else {
			n.logger.Warnf("Dropping %s: %v", pc.id, frame.err)
		}
		n.dropConn(pc.id)
		return
	}

	switch msg := frame.msg.(type) {
	case *protocol.Ping:
		if err := n.send(pc, &protocol.Pong{Nonce: msg.Nonce}); err != nil {
			n.logger.Warnf("Pong to %s failed: %v", pc.id, err)
			n.dropConn(pc.id)
		}

	case *protocol.Pong:
		if err := n.peers.Touch(pc.id); err != nil {
			n.logger.Debugf("Touch %s failed: %v", pc.id, err)
		}

	case *protocol.Join:
		n.handleJoin(pc, msg)

	case *protocol.Neighbor:
		for _, p := range msg.Peers {
			if p.ID == n.id || p.Addr == "" {
				continue
			}
			if err := n.peers.Upsert(p.ID, p.Addr); err != nil {
				n.logger.Debugf("Recording neighbor %s failed: %v", p.ID, err)
			}
		}

	case *protocol.Gossip:
		n.handleGossip(pc.id, msg)

	case *protocol.IHave:
		n.handleIHave(pc, msg)

	case *protocol.Graft:
		n.handleGraft(pc, msg)

	case *protocol.Prune:
		n.logger.Debugf("Peer %s pruned topic %s", pc.id, msg.Topic)

	case *protocol.Disconnect:
		n.logger.Infof("Peer %s disconnecting: %s", pc.id, msg.Reason)
		n.dropConn(pc.id)
	}
}

// handleJoin re-keys a connection from its transport identifier to the
// peer's announced identity.
func (n *Node) handleJoin(pc *peerConn, msg *protocol.Join) {
	peerID := msg.Peer.ID
	if peerID == "" || peerID == pc.id {
		return
	}
	if old, exists := n.conns[peerID]; exists && old != pc {
		_ = old.conn.Close()
	}
	delete(n.conns, pc.id)
	n.logger.Infof("Peer %s joined (was %s)", peerID, pc.id)
	pc.id = peerID
	n.conns[peerID] = pc
	n.timers.Insert(time.Now().Add(heartbeatInterval), timerKey{Peer: peerID, Kind: timerHeartbeat})
	if msg.Peer.Addr != "" {
		if err := n.peers.Upsert(peerID, msg.Peer.Addr); err != nil {
			n.logger.Debugf("Recording joined peer %s failed: %v", peerID, err)
		}
	}
}

func (n *Node) handleGossip(from string, msg *protocol.Gossip) {
	if n.seen[msg.MessageID] {
		return
	}
	n.markSeen(msg.MessageID, msg)

	select {
	case n.events <- Event{From: from, Topic: msg.Topic, Data: msg.Data}:
	default:
		n.logger.Warnf("Event queue full, dropping message %s", msg.MessageID)
	}

	forward := &protocol.Gossip{
		Topic:     msg.Topic,
		MessageID: msg.MessageID,
		Round:     msg.Round + 1,
		Data:      msg.Data,
	}
	for peer, pc := range n.conns {
		if peer == from {
			continue
		}
		if err := n.send(pc, forward); err != nil {
			n.logger.Warnf("Forward to %s failed: %v", peer, err)
			n.dropConn(peer)
		}
	}
}

func (n *Node) handleIHave(pc *peerConn, msg *protocol.IHave) {
	for _, id := range msg.MessageIDs {
		if n.seen[id] {
			continue
		}
		if err := n.send(pc, &protocol.Graft{Topic: msg.Topic, MessageID: id}); err != nil {
			n.logger.Warnf("Graft to %s failed: %v", pc.id, err)
			n.dropConn(pc.id)
			return
		}
	}
}

func (n *Node) handleGraft(pc *peerConn, msg *protocol.Graft) {
	cached, ok := n.cache[msg.MessageID]
	if !ok {
		return
	}
	if err := n.send(pc, cached); err != nil {
		n.logger.Warnf("Graft reply to %s failed: %v", pc.id, err)
		n.dropConn(pc.id)
	}
}

func (n *Node) markSeen(id string, msg *protocol.Gossip) {
	// Crude bound; a real deployment would age entries out instead.
	if len(n.seen) >= messageCacheSize {
		n.seen = make(map[string]bool)
		n.cache = make(map[string]*protocol.Gossip)
	}
	n.seen[id] = true
	n.cache[id] = msg
}
