package store

import (
	"context"
	"time"
)

// Execution is one persisted execution result, kept for the administrative
// read surface. The in-room output cache stays in memory; this table is an
// audit trail, not the source of truth for the relay.
type Execution struct {
	ID        int64
	Room      string
	Author    string
	Language  string
	Output    string
	CreatedAt time.Time
}

// Store persists execution history.
type Store interface {
	// SaveExecution records one completed execution.
	SaveExecution(ctx context.Context, ex *Execution) error

	// ListExecutions returns the most recent executions for a room,
	// newest first, up to limit.
	ListExecutions(ctx context.Context, room string, limit int) ([]Execution, error)

	// Close releases underlying resources.
	Close() error
}
