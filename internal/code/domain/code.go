package domain

import "time"

// AccessCode is a short-lived 5-digit numeric credential authorizing
// actuation commands while inside its validity window. The window is
// inclusive at ValidFrom and exclusive at ValidUntil.
type AccessCode struct {
	Code       string
	Owner      string
	ValidFrom  time.Time
	ValidUntil time.Time
}

// NotYetValid reports whether now is before the window opens.
func (c AccessCode) NotYetValid(now time.Time) bool {
	return now.Before(c.ValidFrom)
}

// Expired reports whether the window has closed. A code presented exactly
// at ValidUntil is expired.
func (c AccessCode) Expired(now time.Time) bool {
	return !now.Before(c.ValidUntil)
}

// RemainingSeconds is the derived time left until expiry, floored at zero.
// It is never stored; listings compute it against the caller's now.
func (c AccessCode) RemainingSeconds(now time.Time) int64 {
	d := c.ValidUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}
