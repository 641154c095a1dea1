package core

import (
	"sync"
	"time"
)

// runGate throttles how often one connection may trigger an execution
// request. It is a fixed window kept as an explicit expiry timestamp that
// is checked on each attempt, so there is no timer callback racing with
// user action. State is local to the connection; rooms are not involved.
type runGate struct {
	mu   sync.Mutex
	next time.Time
}

// allow reports whether a run is permitted at now. When it is, the window
// is re-armed; when it is not, the remaining wait is returned.
func (g *runGate) allow(now time.Time, window time.Duration) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Before(g.next) {
		return g.next.Sub(now), false
	}
	g.next = now.Add(window)
	return 0, true
}
