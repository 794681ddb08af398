package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in SQLite. It can share the record
// store's database handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Record stores a single entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_call_audit (
			run_id, call_id, role, identity_id, tool, arguments, status, code, message, round, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.RunID,
		e.CallID,
		e.Role,
		e.IdentityID,
		e.Tool,
		e.Arguments,
		e.Status,
		e.Code,
		e.Message,
		e.Round,
		normalizeTime(e.StartedAt),
		e.DurationMs,
	)
	return err
}

// List returns entries matching the filter in insertion order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT run_id, call_id, role, identity_id, tool, arguments, status, code, message, round, started_at, duration_ms
		FROM tool_call_audit
	`
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		clauses = append(clauses, clause)
		args = append(args, value)
	}
	if filter.RunID != "" {
		add("run_id = ?", filter.RunID)
	}
	if filter.Role != "" {
		add("role = ?", filter.Role)
	}
	if filter.IdentityID != 0 {
		add("identity_id = ?", filter.IdentityID)
	}
	if filter.Tool != "" {
		add("tool = ?", filter.Tool)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			started sql.NullTime
		)
		if err := rows.Scan(
			&e.RunID,
			&e.CallID,
			&e.Role,
			&e.IdentityID,
			&e.Tool,
			&e.Arguments,
			&e.Status,
			&e.Code,
			&e.Message,
			&e.Round,
			&started,
			&e.DurationMs,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			e.StartedAt = started.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tool_call_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			call_id TEXT NOT NULL,
			role TEXT NOT NULL,
			identity_id INTEGER NOT NULL,
			tool TEXT NOT NULL,
			arguments TEXT,
			status TEXT NOT NULL,
			code TEXT,
			message TEXT,
			round INTEGER NOT NULL,
			started_at TIMESTAMP,
			duration_ms REAL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_call_audit_run ON tool_call_audit(run_id);
		CREATE INDEX IF NOT EXISTS idx_tool_call_audit_tool ON tool_call_audit(tool);
	`)
	return err
}
