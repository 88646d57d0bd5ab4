package domain

import "time"

// Action identifies the lifecycle event an audit entry records.
type Action string

const (
	// ActionCreated is written when a new access code is issued.
	ActionCreated Action = "CREATED"
	// ActionVerified is written when a presented code is inside its validity window.
	ActionVerified Action = "VERIFIED"
	// ActionInvalid is written when a presented code is unknown to the store.
	ActionInvalid Action = "INVALID"
	// ActionTooEarly is written when a presented code exists but its window has not opened yet.
	ActionTooEarly Action = "TOO_EARLY"
	// ActionExpired is written when a code is removed because its window has closed,
	// either lazily on a request or eagerly by the sweep.
	ActionExpired Action = "EXPIRED"
	// ActionActivatedRelay is written when a command was published to a relay target.
	// Entry.Target carries the target id.
	ActionActivatedRelay Action = "ACTIVATED_RELAY"
	// ActionDeleted is written when an admin revokes a code before it expires.
	ActionDeleted Action = "DELETED"
)

// Placeholder is recorded for Owner or Code when the value is unknown,
// e.g. the owner of a code that was never issued.
const Placeholder = "-"

// Entry is one immutable audit record. Entries are append-only; insertion
// order is the only ordering guarantee.
type Entry struct {
	ID        string
	Owner     string
	Code      string
	Action    Action
	Target    string // set only for ActionActivatedRelay
	CreatedAt time.Time
}
