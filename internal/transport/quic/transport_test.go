package quic

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/gossip-it/internal/protocol"
	"github.com/rudransh-shrivastava/gossip-it/internal/transport"
)

func newTestTransport(t *testing.T, resolver AddrResolver) *Transport {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tr, err := NewTransport("127.0.0.1:0", resolver, logger)
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTransportCreateAndClose(t *testing.T) {
	tr := newTestTransport(t, AddrMap{})
	if tr.LocalAddr() == nil {
		t.Error("Expected non-nil local address")
	}
}

func TestTransportConnectAccept(t *testing.T) {
	server := newTestTransport(t, AddrMap{})
	client := newTestTransport(t, AddrMap{
		"server": server.LocalAddr().String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientConn, err := client.Connect(ctx, "server", protocol.ALPN)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer func() { _ = clientConn.Close() }()

	if clientConn.PeerID() != "server" {
		t.Errorf("Expected outbound PeerID %q, got %q", "server", clientConn.PeerID())
	}

	var serverConn transport.Conn
	select {
	case serverConn = <-server.Accept():
	case <-ctx.Done():
		t.Fatal("Timeout waiting for inbound connection")
	}
	defer func() { _ = serverConn.Close() }()

	if serverConn.PeerID() == "" {
		t.Error("Expected non-empty inbound peer identifier")
	}
}

func TestStreamReadWrite(t *testing.T) {
	server := newTestTransport(t, AddrMap{})
	client := newTestTransport(t, AddrMap{
		"server": server.LocalAddr().String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientConn, err := client.Connect(ctx, "server", protocol.ALPN)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer func() { _ = clientConn.Close() }()

	var serverConn transport.Conn
	select {
	case serverConn = <-server.Accept():
	case <-ctx.Done():
		t.Fatal("Timeout waiting for inbound connection")
	}
	defer func() { _ = serverConn.Close() }()

	out, err := clientConn.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	payload := []byte("hello over quic")
	if _, err := out.Write(payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	in, err := serverConn.AcceptStream(ctx)
	if err != nil {
		t.Fatalf("AcceptStream failed: %v", err)
	}
	got, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Expected %q, got %q", payload, got)
	}
}

func TestConnectUnknownPeer(t *testing.T) {
	client := newTestTransport(t, AddrMap{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.Connect(ctx, "stranger", protocol.ALPN); err == nil {
		t.Fatal("Expected error for unresolvable peer")
	}
}
