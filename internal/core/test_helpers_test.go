package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent asserts the client has no pending event of the given kind.
func noEvent(t *testing.T, c *Client, kind EventKind) {
	t.Helper()

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case ev := <-c.Events:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			return
		}
	}
}
