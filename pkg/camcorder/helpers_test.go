package camcorder

import (
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("injected failure")

// waitUntil polls cond until it holds or the deadline passes. Recorder
// events travel through the serializing dispatcher, so observable effects
// are asynchronous to the emitting goroutine.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
