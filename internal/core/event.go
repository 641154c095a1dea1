package core

// EventKind is a notification the relay emits to clients.
type EventKind int

const (
	// EventJoined notifies room members about a membership change.
	// Delivered to every member of the room, including the new one.
	EventJoined EventKind = iota
	// EventFragment delivers a document update fragment, either live
	// (broadcast to the other members) or during replay (unicast).
	EventFragment
	// EventLeft notifies remaining members that a participant disconnected.
	EventLeft
	// EventOutput delivers an execution result, either broadcast to the
	// other members on completion or unicast on a cache fetch.
	EventOutput
	// EventRoomFull tells a joiner the room is at capacity.
	EventRoomFull
	// EventError notifies a client about a domain error.
	EventError
)

// MemberInfo identifies one room participant.
type MemberInfo struct {
	ID       string
	Username string
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Room    string
	Member  MemberInfo   // the member the event is about (joined/left)
	Members []MemberInfo // full member list for EventJoined
	Update  []byte       // fragment payload for EventFragment
	Output  *ExecResult  // non-nil for EventOutput
	Error   *CoreError
}
