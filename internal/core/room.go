package core

import (
	"sync"
	"time"
)

// Room holds everything scoped to one collaboration session: the member
// set, the append-only fragment journal used for late-joiner replay, and
// the last known execution output.
//
// One mutex serializes every operation that touches the room, and all
// room-scoped events are queued to members while it is held. Channel sends
// are non-blocking, so nothing stalls under the lock, and every member
// observes fragments and membership notices in acceptance order. A live
// member whose buffer overflows on a fragment has already lost part of the
// stream, so it is disconnected and comes back through a clean replay
// instead of silently diverging.
//
// A new member does not receive live fragments until it has requested
// replay: the replay snapshot and the live subscription are one atomic
// step, so a fragment lands either in the snapshot or behind it on the
// live path, never both and never neither.
type Room struct {
	Key string

	mu         sync.Mutex
	members    map[*Client]bool // value: subscribed to live fragments
	order      []*Client        // join order, for member lists
	journal    [][]byte
	output     *ExecResult
	limit      int
	emptySince time.Time
	retired    bool
}

func newRoom(key string, limit int) *Room {
	return &Room{
		Key:     key,
		members: make(map[*Client]bool),
		limit:   limit,
	}
}

// TryJoin admits a client unless the room is at capacity or already
// retired. Admission, the member-list snapshot handed to announce, and the
// delivery of the resulting event all happen in one critical section, so
// two joins racing for the last seat cannot both be admitted and
// membership notices reach every member in admission order. ErrRoomRetired
// means the caller holds a room the janitor already swept out of the
// directory and must look the key up again.
func (r *Room) TryJoin(c *Client, announce func(members []*Client) *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return ErrRoomRetired
	}
	if len(r.members) >= r.limit {
		return ErrRoomFull
	}
	if _, exists := r.members[c]; exists {
		return ErrAlreadyMember
	}
	r.members[c] = false
	r.order = append(r.order, c)
	r.emptySince = time.Time{}
	if announce != nil {
		ev := announce(r.memberSnapshot())
		for _, m := range r.order {
			m.deliver(ev)
		}
	}
	return nil
}

// Leave removes a client and announces the departure to whoever remains.
// Removing an absent client is a no-op.
func (r *Room) Leave(c *Client, announce func(remaining []*Client) *Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[c]; !exists {
		return false
	}
	delete(r.members, c)
	for i, m := range r.order {
		if m == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		r.emptySince = time.Now()
	}
	if announce != nil {
		ev := announce(r.memberSnapshot())
		for _, m := range r.order {
			m.deliver(ev)
		}
	}
	return true
}

// Members returns a snapshot of the current members in join order.
func (r *Room) Members() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberSnapshot()
}

// Append records a fragment in the journal and queues it to every live
// member except the sender, which originated the edit locally and must
// not have it echoed back.
func (r *Room) Append(sender *Client, fragment []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, fragment)
	ev := &Event{Kind: EventFragment, Room: r.Key, Update: fragment}
	for _, m := range r.order {
		if m == sender || !r.members[m] {
			continue
		}
		if !m.deliver(ev) {
			// The member lost a fragment and has diverged; kick it so
			// the transport tears down and the client reconnects into
			// a clean replay.
			m.close()
		}
	}
}

// ReplayAndSubscribe queues the full journal to the client in acceptance
// order and marks it live, both under the room lock. Every fragment
// accepted before this point is in the replayed prefix; everything after
// arrives on the live path behind it. A repeated replay request re-reads
// the journal from the start, which the idempotent merge on the client
// side absorbs.
func (r *Room) ReplayAndSubscribe(c *Client) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[c]; !exists {
		return 0, false
	}
	for _, fragment := range r.journal {
		if !c.deliver(&Event{Kind: EventFragment, Room: r.Key, Update: fragment}) {
			// An incomplete replay is as bad as a lost live fragment.
			c.close()
			return 0, false
		}
	}
	r.members[c] = true
	return len(r.journal), true
}

// JournalLen reports how many fragments the room has accepted.
func (r *Room) JournalLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.journal)
}

// SetOutput overwrites the cached execution result and queues it to every
// member except the author, which already holds its own copy.
func (r *Room) SetOutput(authorID string, result *ExecResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = result
	ev := &Event{Kind: EventOutput, Room: r.Key, Output: result}
	for _, m := range r.order {
		if m.ID != authorID {
			m.deliver(ev)
		}
	}
}

// Output returns the last known execution result, or nil.
func (r *Room) Output() *ExecResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// retire marks the room dead once it has been empty for the grace period.
// The flag is set under the room mutex, in the same critical section the
// janitor removes the room from the directory, so a join holding a stale
// pointer to this room observes it and retries through the directory.
func (r *Room) retire(now time.Time, after time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return true
	}
	if len(r.members) > 0 || r.emptySince.IsZero() || now.Sub(r.emptySince) < after {
		return false
	}
	r.retired = true
	return true
}

func (r *Room) emptyFor(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 || r.emptySince.IsZero() {
		return 0
	}
	return now.Sub(r.emptySince)
}

func (r *Room) memberSnapshot() []*Client {
	out := make([]*Client, len(r.order))
	copy(out, r.order)
	return out
}
