// Package repository provides the Postgres-backed audit store for
// installations that want the trail to survive restarts. Live codes are
// never persisted; only their lifecycle events are.
package repository

import (
	"context"
	"database/sql"

	"gate-control-plane/internal/audit/domain"
)

// PostgresStore implements audit.Store on the audit_entries table. The
// bigserial seq column preserves insertion order regardless of clock skew
// between entries.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns an audit store writing to conn.
func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

// Append inserts e at the end of the trail.
func (s *PostgresStore) Append(ctx context.Context, e *domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, owner, code, action, target, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Owner, e.Code, string(e.Action), e.Target, e.CreatedAt)
	return err
}

// List returns entries in insertion order. limit <= 0 returns everything
// from offset onward.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]domain.Entry, error) {
	if offset < 0 {
		offset = 0
	}
	q := `SELECT id, owner, code, action, target, created_at
	      FROM audit_entries ORDER BY seq OFFSET $1`
	args := []any{offset}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var action string
		if err := rows.Scan(&e.ID, &e.Owner, &e.Code, &action, &e.Target, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
