// Package dialer maintains a deduplicated, cancellable set of outbound
// connection attempts and surfaces their outcomes one at a time in
// completion order.
package dialer

import (
	"context"
	"errors"
	"sync"

	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

// ErrDialCancelled is the result of an attempt that was aborted before the
// underlying connect settled. It is reported through Next, never retried.
var ErrDialCancelled = errors.New("dial cancelled")

// Completion is the outcome of one dial attempt. Exactly one of Conn and
// Err is set. Callers must tolerate completions for peers they already
// aborted; those arrive with Err == ErrDialCancelled.
type Completion struct {
	Peer string
	Conn transport.Conn
	Err  error
}

type attempt struct {
	cancel context.CancelFunc
	gen    uint64
}

type completion struct {
	Completion
	gen uint64
}

// Dialer dials peers through a Transport and keeps a queue of pending
// attempts keyed by peer ID. At most one attempt per peer is pending at a
// time; a second QueueDial for the same peer is a no-op.
//
// A peer may be re-dialed after AbortDial before the aborted attempt has
// resolved. Attempts therefore carry a generation tag: a stale resolution
// surfaces through Next but never evicts the bookkeeping of a newer
// attempt for the same peer.
type Dialer struct {
	tr transport.Transport

	mu      sync.Mutex
	pending map[string]*attempt
	gen     uint64

	results chan completion
}

func New(tr transport.Transport) *Dialer {
	return &Dialer{
		tr:      tr,
		pending: make(map[string]*attempt),
		results: make(chan completion, 16),
	}
}

// QueueDial starts an attempt to connect to peer with the given protocol
// tag. No-op if an attempt for peer is already pending.
func (d *Dialer) QueueDial(peer string, proto string) {
	d.mu.Lock()
	if _, ok := d.pending[peer]; ok {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.gen++
	gen := d.gen
	d.pending[peer] = &attempt{cancel: cancel, gen: gen}
	d.mu.Unlock()

	go d.dial(ctx, peer, proto, gen)
}

func (d *Dialer) dial(ctx context.Context, peer, proto string, gen uint64) {
	type outcome struct {
		conn transport.Conn
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		conn, err := d.tr.Connect(ctx, peer, proto)
		ch <- outcome{conn, err}
	}()

	select {
	case <-ctx.Done():
		// Resolve immediately; the abandoned connect keeps running and
		// its connection, if it ever lands, is closed unused.
		go func() {
			if out := <-ch; out.conn != nil {
				_ = out.conn.Close()
			}
		}()
		d.results <- completion{Completion{Peer: peer, Err: ErrDialCancelled}, gen}
	case out := <-ch:
		// The connect can win the select race against an abort that
		// already fired; a cancelled attempt must never surface a live
		// connection.
		if ctx.Err() != nil {
			if out.conn != nil {
				_ = out.conn.Close()
			}
			out.conn = nil
			out.err = ErrDialCancelled
		}
		d.results <- completion{Completion{Peer: peer, Conn: out.conn, Err: out.err}, gen}
	}
}

// AbortDial cancels the pending attempt for peer, if any, and removes it
// from the pending set immediately. The attempt still resolves through
// Next later with ErrDialCancelled.
func (d *Dialer) AbortDial(peer string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.pending[peer]; ok {
		a.cancel()
		delete(d.pending, peer)
	}
}

// IsPending reports whether peer has an unresolved attempt.
func (d *Dialer) IsPending(peer string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[peer]
	return ok
}

// Next blocks until some attempt completes and returns its outcome.
// Attempts resolve in completion order, not submission order. With no
// attempts pending Next blocks until one is queued and completes, or ctx
// is cancelled; it never returns a "no work" result.
func (d *Dialer) Next(ctx context.Context) (Completion, error) {
	select {
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	case res := <-d.results:
		d.mu.Lock()
		if a, ok := d.pending[res.Peer]; ok && a.gen == res.gen {
			a.cancel()
			delete(d.pending, res.Peer)
		}
		d.mu.Unlock()
		return res.Completion, nil
	}
}
