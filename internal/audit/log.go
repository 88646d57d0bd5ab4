// Package audit maintains the append-only trail of access-code lifecycle
// events. Every issue, verify, dispatch, revoke, and sweep decision lands
// here; insertion order is the only ordering guarantee.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gate-control-plane/internal/audit/domain"
)

// Store persists audit entries in insertion order. Append must never drop
// or reorder entries relative to the order calls were accepted.
type Store interface {
	Append(ctx context.Context, e *domain.Entry) error
	List(ctx context.Context, limit, offset int) ([]domain.Entry, error)
}

// Log writes and reads the audit trail. A failed append is an unexpected
// condition, not a domain error: callers surface it as an internal failure.
type Log struct {
	store Store
	nowFn func() time.Time
}

// NewLog returns a Log backed by store.
func NewLog(store Store) *Log {
	return &Log{store: store, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Record appends one entry for the given action. Empty owner or code are
// recorded as the placeholder, matching entries for codes that were never
// issued.
func (l *Log) Record(ctx context.Context, owner, code string, action domain.Action) error {
	return l.append(ctx, owner, code, action, "")
}

// RecordActivation appends an ACTIVATED_RELAY entry carrying the target id
// the command was published to.
func (l *Log) RecordActivation(ctx context.Context, owner, code, target string) error {
	return l.append(ctx, owner, code, domain.ActionActivatedRelay, target)
}

// ReadAll returns every entry in insertion order.
func (l *Log) ReadAll(ctx context.Context) ([]domain.Entry, error) {
	return l.store.List(ctx, 0, 0)
}

// Read returns a slice of the trail for administrative pagination.
// limit <= 0 means no limit.
func (l *Log) Read(ctx context.Context, limit, offset int) ([]domain.Entry, error) {
	return l.store.List(ctx, limit, offset)
}

func (l *Log) append(ctx context.Context, owner, code string, action domain.Action, target string) error {
	if owner == "" {
		owner = domain.Placeholder
	}
	if code == "" {
		code = domain.Placeholder
	}
	e := &domain.Entry{
		ID:        uuid.New().String(),
		Owner:     owner,
		Code:      code,
		Action:    action,
		Target:    target,
		CreatedAt: l.nowFn(),
	}
	if err := l.store.Append(ctx, e); err != nil {
		return fmt.Errorf("audit: append %s: %w", action, err)
	}
	return nil
}
