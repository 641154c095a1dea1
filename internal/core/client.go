package core

import "sync"

// Stage is a connection's position in its lifecycle. Transitions only move
// forward: Connected -> Joined -> Disconnected.
type Stage int

const (
	// StageConnected means the transport is open but no room was joined yet.
	StageConnected Stage = iota
	// StageJoined means the client has a bound name and belongs to one room.
	StageJoined
	// StageDisconnected is terminal.
	StageDisconnected
)

// Client is one live connection as seen by the relay core.
type Client struct {
	ID     string
	Events chan *Event

	done      chan struct{}
	closeOnce sync.Once

	gate runGate

	mu    sync.Mutex
	stage Stage
	room  string
}

// NewClient constructs a client in the Connected stage.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 256),
		done:   make(chan struct{}),
		stage:  StageConnected,
	}
}

// Stage returns the current lifecycle stage.
func (c *Client) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Room returns the room the client joined, or "" before joining.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// markJoined moves the client into the Joined stage. Returns false if the
// client is not in the Connected stage.
func (c *Client) markJoined(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != StageConnected {
		return false
	}
	c.stage = StageJoined
	c.room = room
	return true
}

// inRoom reports whether the client is a joined member of the given room.
func (c *Client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage == StageJoined && c.room == room
}

// markDisconnected moves the client to the terminal stage exactly once and
// returns the room it belonged to. The second and later calls return false,
// which makes overlapping transport disconnect notifications harmless.
func (c *Client) markDisconnected() (room string, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage == StageDisconnected {
		return "", false
	}
	room = c.room
	c.stage = StageDisconnected
	c.room = ""
	return room, true
}

// close signals writers that no further events should be delivered.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the client disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// deliver hands an event to the client's outbound queue without blocking.
// Returns false if the client is gone or its queue is full.
func (c *Client) deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}
