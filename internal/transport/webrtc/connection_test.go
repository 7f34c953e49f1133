package webrtc

import (
	"io"
	"testing"
	"time"
)

func newTestConnState() *connection {
	return &connection{
		recvChan: make(chan []byte, 2),
		done:     make(chan struct{}),
	}
}

func TestChannelStreamPartialReads(t *testing.T) {
	c := newTestConnState()
	s := &channelStream{conn: c}

	c.recvChan <- []byte("hello world")

	buf := make([]byte, 5)
	n, err := s.Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	n, err = s.Read(buf)
	if err != nil || string(buf[:n]) != " worl" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	n, err = s.Read(buf)
	if err != nil || string(buf[:n]) != "d" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	close(c.done)
	if _, err := s.Read(buf); err != io.EOF {
		t.Fatalf("Expected io.EOF after teardown, got %v", err)
	}
}

func TestChannelStreamMessageBoundaries(t *testing.T) {
	c := newTestConnState()
	s := &channelStream{conn: c}

	c.recvChan <- []byte("ab")
	c.recvChan <- []byte("cd")
	close(c.done)

	// Messages buffered before teardown must drain before EOF.
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "abcd" {
		t.Errorf("Expected %q, got %q", "abcd", got)
	}
}

func TestChannelStreamBlockedReadUnblocksOnTeardown(t *testing.T) {
	c := newTestConnState()
	s := &channelStream{conn: c}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 1))
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(c.done)

	select {
	case err := <-errCh:
		if err != io.EOF {
			t.Fatalf("Expected io.EOF, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Read still blocked after teardown")
	}
}
