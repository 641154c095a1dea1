package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codepadhq/codepad-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       TEXT NOT NULL,
	author     TEXT NOT NULL,
	language   TEXT NOT NULL,
	output     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_executions_room ON executions(room, id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveExecution records one completed execution.
func (s *SQLiteStore) SaveExecution(ctx context.Context, ex *store.Execution) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (room, author, language, output, created_at) VALUES (?, ?, ?, ?, ?)`,
		ex.Room, ex.Author, ex.Language, ex.Output, ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	ex.ID, _ = res.LastInsertId()
	return nil
}

// ListExecutions returns the most recent executions for a room, newest first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, room string, limit int) ([]store.Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, author, language, output, created_at
		 FROM executions WHERE room = ? ORDER BY id DESC LIMIT ?`,
		room, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	out := make([]store.Execution, 0, limit)
	for rows.Next() {
		var ex store.Execution
		if err := rows.Scan(&ex.ID, &ex.Room, &ex.Author, &ex.Language, &ex.Output, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
