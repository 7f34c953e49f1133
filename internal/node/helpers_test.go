package node

import (
	"testing"
	"time"
)

func TestSplitBootstrapEntry(t *testing.T) {
	peerID, addr, err := SplitBootstrapEntry("peer-1@127.0.0.1:4001")
	if err != nil {
		t.Fatalf("SplitBootstrapEntry failed: %v", err)
	}
	if peerID != "peer-1" || addr != "127.0.0.1:4001" {
		t.Errorf("Got %q, %q", peerID, addr)
	}

	for _, bad := range []string{"", "no-separator", "@addr", "peer@"} {
		if _, _, err := SplitBootstrapEntry(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestRedialDelay(t *testing.T) {
	base := time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{10, 30 * time.Second},
	}
	for _, c := range cases {
		if got := RedialDelay(c.attempt, base); got != c.want {
			t.Errorf("RedialDelay(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}
