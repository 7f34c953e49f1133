package timers

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestWaitAndDrainOrdersBatches(t *testing.T) {
	tm := New[string]()
	now := time.Now()
	tm.Insert(now.Add(20*time.Millisecond), "first")
	tm.Insert(now.Add(60*time.Millisecond), "second")
	tm.Insert(now.Add(60*time.Millisecond), "third")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := tm.WaitAndDrain(ctx)
	if err != nil {
		t.Fatalf("WaitAndDrain failed: %v", err)
	}
	if len(batch) != 1 || batch[0].Item != "first" {
		t.Fatalf("Expected only the first entry, got %+v", batch)
	}

	batch, err = tm.WaitAndDrain(ctx)
	if err != nil {
		t.Fatalf("WaitAndDrain failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("Expected both remaining entries together, got %+v", batch)
	}
	seen := map[string]bool{}
	for _, e := range batch {
		seen[e.Item] = true
	}
	if !seen["second"] || !seen["third"] {
		t.Errorf("Expected second and third, got %+v", batch)
	}

	if tm.Len() != 0 {
		t.Errorf("Expected no entries left, got %d", tm.Len())
	}
}

func TestWaitAndDrainEmptyBlocks(t *testing.T) {
	tm := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tm.WaitAndDrain(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("WaitAndDrain returned before the bounded wait elapsed")
	}
}

func TestWaitAndDrainPastDeadline(t *testing.T) {
	tm := New[int]()
	tm.Insert(time.Now().Add(-time.Second), 1)
	tm.Insert(time.Now().Add(-time.Minute), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	batch, err := tm.WaitAndDrain(ctx)
	if err != nil {
		t.Fatalf("WaitAndDrain failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("Expected both past-deadline entries, got %+v", batch)
	}
}

func TestInsertWhileWaitingLowersWake(t *testing.T) {
	tm := New[string]()
	tm.Insert(time.Now().Add(10*time.Second), "late")

	type result struct {
		batch []Entry[string]
		err   error
	}
	done := make(chan result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		batch, err := tm.WaitAndDrain(ctx)
		done <- result{batch, err}
	}()

	// Let the waiter arm against the far deadline, then undercut it.
	time.Sleep(20 * time.Millisecond)
	tm.Insert(time.Now().Add(30*time.Millisecond), "early")

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("WaitAndDrain failed: %v", res.err)
		}
		if len(res.batch) != 1 || res.batch[0].Item != "early" {
			t.Fatalf("Expected only the early entry, got %+v", res.batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAndDrain did not re-arm for the earlier deadline")
	}

	if tm.Len() != 1 {
		t.Errorf("Expected the late entry to remain, got %d entries", tm.Len())
	}
}

func TestWaitAndDrainMockClock(t *testing.T) {
	mock := clock.NewMock()
	tm := NewWithClock[string](mock)
	tm.Insert(mock.Now().Add(time.Hour), "deferred")

	type result struct {
		batch []Entry[string]
		err   error
	}
	done := make(chan result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		batch, err := tm.WaitAndDrain(ctx)
		done <- result{batch, err}
	}()

	// Give the waiter time to arm its timer before advancing the clock.
	time.Sleep(20 * time.Millisecond)
	mock.Add(time.Hour)

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("WaitAndDrain failed: %v", res.err)
		}
		if len(res.batch) != 1 || res.batch[0].Item != "deferred" {
			t.Fatalf("Unexpected batch %+v", res.batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAndDrain did not fire after the clock advanced")
	}
}

func TestInsertWakesEmptyWaiter(t *testing.T) {
	tm := New[int]()

	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		defer close(done)
		batch, err := tm.WaitAndDrain(ctx)
		if err != nil {
			t.Errorf("WaitAndDrain failed: %v", err)
			return
		}
		if len(batch) != 1 || batch[0].Item != 7 {
			t.Errorf("Unexpected batch %+v", batch)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	tm.Insert(time.Now().Add(10*time.Millisecond), 7)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Insert did not wake the empty waiter")
	}
}
