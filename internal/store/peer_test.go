package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rudransh-shrivastava/gossip-it/internal/db"
)

func newTestStore(t *testing.T) *PeerStore {
	t.Helper()
	gdb, err := db.New(filepath.Join(t.TempDir(), "peers.sqlite3"))
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	return NewPeerStore(gdb)
}

func TestUpsertResolve(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	if err := ps.Upsert("peer-1", "127.0.0.1:4001"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	addr, err := ps.Resolve(ctx, "peer-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr != "127.0.0.1:4001" {
		t.Errorf("Expected 127.0.0.1:4001, got %s", addr)
	}

	// Upsert with a new address must replace the old one.
	if err := ps.Upsert("peer-1", "127.0.0.1:4002"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	addr, err = ps.Resolve(ctx, "peer-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr != "127.0.0.1:4002" {
		t.Errorf("Expected updated address, got %s", addr)
	}

	peers, err := ps.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(peers) != 1 {
		t.Errorf("Expected one peer row, got %d", len(peers))
	}
}

func TestResolveUnknown(t *testing.T) {
	ps := newTestStore(t)

	_, err := ps.Resolve(context.Background(), "stranger")
	if !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("Expected ErrPeerNotFound, got %v", err)
	}
}

func TestForget(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	if err := ps.Upsert("peer-1", "127.0.0.1:4001"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := ps.Forget("peer-1"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if _, err := ps.Resolve(ctx, "peer-1"); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("Expected ErrPeerNotFound after Forget, got %v", err)
	}
}
