package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomFull      = "room_full"
	ErrCodeAlreadyBound  = "already_bound"
	ErrCodeNotBound      = "not_bound"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeNotJoined     = "not_joined"
	ErrCodeThrottled     = "throttled"
	ErrCodeBadRequest    = "bad_request"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrRoomRetired   = errors.New("room has been retired")
	ErrAlreadyMember = errors.New("already a member of the room")
	ErrAlreadyBound  = errors.New("connection already has a name")
	ErrNotBound      = errors.New("connection has no name")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
