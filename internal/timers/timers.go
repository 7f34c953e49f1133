// Package timers multiplexes many future deadlines into one awaitable
// wake-up. A single armed timer tracks the earliest known deadline; nothing
// here polls. Payloads are opaque to the multiplexer.
package timers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Entry is a scheduled payload together with the deadline it was inserted
// under. Entries sharing a deadline drain together in no particular order.
type Entry[T any] struct {
	Deadline time.Time
	Item     T
}

// Timers holds pending entries sorted by deadline. Insert may be called
// while another goroutine blocks in WaitAndDrain; the blocked wait re-arms
// if the new entry lowers the earliest deadline.
type Timers[T any] struct {
	clk clock.Clock

	mu      sync.Mutex
	entries []Entry[T]

	// rearm wakes a blocked WaitAndDrain so it recomputes the earliest
	// deadline after an insert.
	rearm chan struct{}
}

func New[T any]() *Timers[T] {
	return NewWithClock[T](clock.New())
}

func NewWithClock[T any](clk clock.Clock) *Timers[T] {
	return &Timers[T]{
		clk:   clk,
		rearm: make(chan struct{}, 1),
	}
}

// Insert schedules item to become due at the given deadline. Deadlines in
// the past are legal and drain on the next wait.
func (t *Timers[T]) Insert(at time.Time, item T) {
	t.mu.Lock()
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Deadline.After(at)
	})
	t.entries = append(t.entries, Entry[T]{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = Entry[T]{Deadline: at, Item: item}
	t.mu.Unlock()

	select {
	case t.rearm <- struct{}{}:
	default:
	}
}

// Len reports how many entries are scheduled.
func (t *Timers[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// WaitAndDrain blocks until the earliest deadline elapses, then removes and
// returns every entry due at or before it. With no entries scheduled it
// blocks until an Insert arrives or ctx is cancelled; it never returns an
// empty batch with a nil error.
func (t *Timers[T]) WaitAndDrain(ctx context.Context) ([]Entry[T], error) {
	for {
		t.mu.Lock()
		if len(t.entries) == 0 {
			t.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.rearm:
				continue
			}
		}
		next := t.entries[0].Deadline
		t.mu.Unlock()

		delay := next.Sub(t.clk.Now())
		if delay < 0 {
			delay = 0
		}
		timer := t.clk.Timer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-t.rearm:
			// An insert may have lowered the minimum; recompute.
			timer.Stop()
			continue
		case <-timer.C:
		}

		return t.drainUntil(next), nil
	}
}

// drainUntil removes and returns all entries with deadline <= cutoff.
func (t *Timers[T]) drainUntil(cutoff time.Time) []Entry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Deadline.After(cutoff)
	})
	due := make([]Entry[T], n)
	copy(due, t.entries[:n])
	t.entries = t.entries[:copy(t.entries, t.entries[n:])]
	return due
}
