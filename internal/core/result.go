package core

import "time"

// ExecResult is the last known outcome of running the room's code.
// Backend failures are carried in Output as error text, so every member
// sees the same panel state whether the run succeeded or not.
type ExecResult struct {
	Output      string
	Language    string
	TriggeredBy string
	CreatedAt   time.Time
}
