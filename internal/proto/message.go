package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin       = "join"
	InboundTypeCodeChange = "code-change"
	InboundTypeSyncCode   = "sync-code"
	InboundTypeRun        = "run"
	InboundTypeSyncOutput = "sync-output"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinData requests to join a room under a display name.
type JoinData struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// CodeChangeData carries one opaque document update fragment.
type CodeChangeData struct {
	Room   string `json:"room"`
	Update []byte `json:"update"` // base64 over the wire
}

// SyncCodeData asks for a replay of the room's update history.
type SyncCodeData struct {
	Room string `json:"room"`
}

// RunData asks the server to execute the room's code.
type RunData struct {
	Room     string `json:"room"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// SyncOutputData asks for the room's last known execution output.
type SyncOutputData struct {
	Room string `json:"room"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RoomMember is one participant in a membership event.
type RoomMember struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// EventJoined notifies the whole room, newcomer included, about a
// membership change. Clients is the full current member list.
type EventJoined struct {
	Room     string       `json:"room"`
	Clients  []RoomMember `json:"clients"`
	ID       string       `json:"id"`
	Username string       `json:"username"`
}

// EventCodeChange delivers one update fragment, live or replayed.
type EventCodeChange struct {
	Room   string `json:"room"`
	Update []byte `json:"update"`
}

// EventDisconnected notifies remaining members that someone left.
type EventDisconnected struct {
	Room     string `json:"room"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

// EventSyncOutput mirrors the execution output panel.
type EventSyncOutput struct {
	Room        string `json:"room"`
	Output      string `json:"output"`
	Language    string `json:"language"`
	TriggeredBy string `json:"triggered_by"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
