package node

import (
	"fmt"
	"strings"
	"time"
)

// SplitBootstrapEntry parses a "peerID@host:port" bootstrap entry.
func SplitBootstrapEntry(entry string) (peerID, addr string, err error) {
	peerID, addr, ok := strings.Cut(entry, "@")
	if !ok || peerID == "" || addr == "" {
		return "", "", fmt.Errorf("expected peerID@host:port, got %q", entry)
	}
	return peerID, addr, nil
}

// RedialDelay returns the backoff before retry number attempt (1-based):
// base, 2*base, 4*base, capped at 30s.
func RedialDelay(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base << (attempt - 1)
	if max := 30 * time.Second; delay > max {
		delay = max
	}
	return delay
}
