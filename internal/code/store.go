// Package code owns the set of live access codes. The Store is the single
// shared mutable resource in the core: every mutation (issue, revoke, lazy
// or swept expiry) is serialized under one lock, held only for the
// check-and-mutate step and never across transport or database calls.
package code

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"gate-control-plane/internal/audit"
	auditdomain "gate-control-plane/internal/audit/domain"
	"gate-control-plane/internal/code/domain"
)

// Codes are drawn uniformly from [codeMin, codeMin+codeSpace).
const (
	codeMin   = 10000
	codeSpace = 90000
)

// defaultMaxAttempts bounds collision retries during issuance. With a
// 90,000-value space a collision streak this long means the store is
// effectively full, which is a deployment problem, not a user error.
const defaultMaxAttempts = 100

var (
	// ErrInvalidWindow is returned when valid_until is not strictly after
	// valid_from. Nothing is stored and nothing is logged.
	ErrInvalidWindow = errors.New("valid_until must be after valid_from")
	// ErrNotFound is returned by Revoke for a code that is not live.
	ErrNotFound = errors.New("code not found")
	// ErrSpaceExhausted is returned when issuance cannot find a free code
	// within the retry bound. Treated as a fatal configuration error.
	ErrSpaceExhausted = errors.New("code space exhausted")
)

// ActiveCode is one row of an administrative listing: a live code plus its
// remaining lifetime derived against the snapshot time.
type ActiveCode struct {
	domain.AccessCode
	RemainingSeconds int64
}

// Store holds all live access codes in memory. Codes do not survive a
// restart; that is deliberate.
type Store struct {
	mu          sync.RWMutex
	codes       map[string]domain.AccessCode
	log         *audit.Log
	maxAttempts int
	nowFn       func() time.Time
	drawFn      func() (string, error)
}

// NewStore returns an empty Store recording lifecycle events to log.
// maxAttempts bounds collision retries; <= 0 selects the default.
func NewStore(log *audit.Log, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Store{
		codes:       make(map[string]domain.AccessCode),
		log:         log,
		maxAttempts: maxAttempts,
		nowFn:       func() time.Time { return time.Now().UTC() },
		drawFn:      drawCode,
	}
}

// Issue creates a new code for owner valid over [validFrom, validUntil).
// A nil validFrom defaults to the current time. The generated code is
// unique among live codes; on success a CREATED entry is written.
func (s *Store) Issue(ctx context.Context, owner string, validFrom *time.Time, validUntil time.Time) (domain.AccessCode, error) {
	from := s.nowFn()
	if validFrom != nil {
		from = validFrom.UTC()
	}
	if !validUntil.After(from) {
		return domain.AccessCode{}, ErrInvalidWindow
	}

	entry := domain.AccessCode{
		Owner:      owner,
		ValidFrom:  from,
		ValidUntil: validUntil.UTC(),
	}

	s.mu.Lock()
	inserted := false
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		c, err := s.drawFn()
		if err != nil {
			s.mu.Unlock()
			return domain.AccessCode{}, fmt.Errorf("draw code: %w", err)
		}
		if _, taken := s.codes[c]; taken {
			continue
		}
		entry.Code = c
		s.codes[c] = entry
		inserted = true
		break
	}
	s.mu.Unlock()

	if !inserted {
		return domain.AccessCode{}, ErrSpaceExhausted
	}

	if err := s.log.Record(ctx, entry.Owner, entry.Code, auditdomain.ActionCreated); err != nil {
		// The trail must not miss codes it accepted; undo the insert and
		// fail the request instead.
		s.mu.Lock()
		delete(s.codes, entry.Code)
		s.mu.Unlock()
		return domain.AccessCode{}, err
	}
	return entry, nil
}

// Lookup returns the live entry for code, if any. Pure read: no mutation
// and no audit emission — the caller decides what the outcome means.
func (s *Store) Lookup(code string) (domain.AccessCode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.codes[code]
	return entry, ok
}

// Revoke removes code and writes a DELETED entry with the prior owner.
// Revoking an absent code returns ErrNotFound and logs nothing, so
// repeated revocations are harmless.
func (s *Store) Revoke(ctx context.Context, code string) (domain.AccessCode, error) {
	s.mu.Lock()
	entry, ok := s.codes[code]
	if ok {
		delete(s.codes, code)
	}
	s.mu.Unlock()

	if !ok {
		return domain.AccessCode{}, ErrNotFound
	}
	if err := s.log.Record(ctx, entry.Owner, entry.Code, auditdomain.ActionDeleted); err != nil {
		return domain.AccessCode{}, err
	}
	return entry, nil
}

// ExpireIfDue removes code only if it is still live and its window has
// closed at now. The compare-and-delete runs under the store lock, so of
// all racers (lazy expiry on a request, the sweep) exactly one observes
// removed == true and owns writing the EXPIRED entry.
func (s *Store) ExpireIfDue(code string, now time.Time) (domain.AccessCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[code]
	if !ok || !entry.Expired(now) {
		return domain.AccessCode{}, false
	}
	delete(s.codes, code)
	return entry, true
}

// ExpireDue removes every entry whose window has closed at now and returns
// them ordered by expiry then code. The caller writes the EXPIRED entries.
func (s *Store) ExpireDue(now time.Time) []domain.AccessCode {
	s.mu.Lock()
	var due []domain.AccessCode
	for c, entry := range s.codes {
		if entry.Expired(now) {
			due = append(due, entry)
			delete(s.codes, c)
		}
	}
	s.mu.Unlock()

	sortByExpiry(due)
	return due
}

// SnapshotActive lists every live code with its remaining lifetime at now,
// ordered by expiry then code. Every stored entry is live by construction,
// so nothing is filtered out.
func (s *Store) SnapshotActive(now time.Time) []ActiveCode {
	s.mu.RLock()
	entries := make([]domain.AccessCode, 0, len(s.codes))
	for _, entry := range s.codes {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sortByExpiry(entries)
	out := make([]ActiveCode, len(entries))
	for i, entry := range entries {
		out[i] = ActiveCode{AccessCode: entry, RemainingSeconds: entry.RemainingSeconds(now)}
	}
	return out
}

// Len returns the number of live codes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

func sortByExpiry(entries []domain.AccessCode) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ValidUntil.Equal(entries[j].ValidUntil) {
			return entries[i].ValidUntil.Before(entries[j].ValidUntil)
		}
		return entries[i].Code < entries[j].Code
	})
}

// drawCode returns a uniformly random 5-digit code as a string.
// Uses crypto/rand so concurrent issuance cannot correlate draws.
func drawCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%05d", n.Int64()+codeMin), nil
}
