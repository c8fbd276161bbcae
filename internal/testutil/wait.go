package testutil

import (
	"testing"
	"time"
)

// WaitFor polls check every 10ms until it holds or timeout elapses.
func WaitFor(tb testing.TB, check func() bool, timeout time.Duration) {
	tb.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if check() {
			return
		}
		select {
		case <-deadline.C:
			tb.Fatalf("condition not met within %v", timeout)
		case <-ticker.C:
		}
	}
}
