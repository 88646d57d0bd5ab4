// Package gate decides whether a presented access code authorizes physical
// actuation and, when it does, publishes the command through the transport.
// It is the authoritative state machine over a code's validity window.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gate-control-plane/internal/audit"
	auditdomain "gate-control-plane/internal/audit/domain"
	"gate-control-plane/internal/code"
	"gate-control-plane/internal/relay"
	"gate-control-plane/internal/transport"
)

// Sentinel errors for verification and dispatch; the HTTP layer maps them
// to response categories.
var (
	// ErrCodeInvalid means the code is unknown to the store. A revoked or
	// already-expired code is indistinguishable from one never issued.
	ErrCodeInvalid = errors.New("code not recognized")
	// ErrCodeNotYetValid means the code exists but its window has not
	// opened. The code is kept.
	ErrCodeNotYetValid = errors.New("code not yet valid")
	// ErrCodeExpired means the code's window has closed. The code is
	// removed as a side effect.
	ErrCodeExpired = errors.New("code expired")
	// ErrPublish means the broker publish failed after a successful
	// verification. The code stays valid and the caller may retry.
	ErrPublish = errors.New("transport publish failed")
)

// Verification is the outcome of an authorized verify.
type Verification struct {
	Owner      string
	ValidUntil time.Time
}

// Dispatch is the outcome of a successfully published command.
type Dispatch struct {
	Owner  string
	Target string
	Topic  string
}

// Gate gates actuation commands behind code validity.
type Gate struct {
	store     *code.Store
	log       *audit.Log
	registry  *relay.Registry
	publisher transport.Publisher
	nowFn     func() time.Time
}

// New returns a Gate over the given collaborators.
func New(store *code.Store, log *audit.Log, registry *relay.Registry, publisher transport.Publisher) *Gate {
	return &Gate{
		store:     store,
		log:       log,
		registry:  registry,
		publisher: publisher,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Verify evaluates c against the wall clock. Codes are not single-use: an
// authorized code stays live for repeated use until its window closes or
// it is revoked.
func (g *Gate) Verify(ctx context.Context, c string) (Verification, error) {
	return g.verifyAt(ctx, c, g.nowFn())
}

// verifyAt is the state machine. Exactly one audit entry is written per
// attempt; an expired code is removed lazily, with the compare-and-delete
// in the store guaranteeing a single EXPIRED entry even when a sweep races
// the same code.
func (g *Gate) verifyAt(ctx context.Context, c string, now time.Time) (Verification, error) {
	entry, ok := g.store.Lookup(c)
	if !ok {
		if err := g.log.Record(ctx, "", c, auditdomain.ActionInvalid); err != nil {
			return Verification{}, err
		}
		return Verification{}, ErrCodeInvalid
	}
	if entry.NotYetValid(now) {
		if err := g.log.Record(ctx, entry.Owner, c, auditdomain.ActionTooEarly); err != nil {
			return Verification{}, err
		}
		return Verification{}, ErrCodeNotYetValid
	}
	if entry.Expired(now) {
		if removed, won := g.store.ExpireIfDue(c, now); won {
			if err := g.log.Record(ctx, removed.Owner, c, auditdomain.ActionExpired); err != nil {
				return Verification{}, err
			}
		}
		return Verification{}, ErrCodeExpired
	}
	if err := g.log.Record(ctx, entry.Owner, c, auditdomain.ActionVerified); err != nil {
		return Verification{}, err
	}
	return Verification{Owner: entry.Owner, ValidUntil: entry.ValidUntil}, nil
}

// Dispatch verifies c and, only when authorized, publishes the encoded
// command to the target's topic. The publish runs outside any store lock.
// On publish failure nothing is logged beyond the VERIFIED entry already
// written, so the authorization is preserved and a retry is safe.
func (g *Gate) Dispatch(ctx context.Context, c, targetID, command string) (Dispatch, error) {
	target, ok := g.registry.Resolve(targetID)
	if !ok {
		return Dispatch{}, fmt.Errorf("%w: %q", relay.ErrUnknownTarget, targetID)
	}

	v, err := g.verifyAt(ctx, c, g.nowFn())
	if err != nil {
		return Dispatch{}, err
	}

	payload, err := target.Encode(command)
	if err != nil {
		return Dispatch{}, fmt.Errorf("encode command for %s: %w", target.ID, err)
	}
	if err := g.publisher.Publish(ctx, target.Topic, payload); err != nil {
		return Dispatch{}, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	if err := g.log.RecordActivation(ctx, v.Owner, c, target.ID); err != nil {
		return Dispatch{}, err
	}
	return Dispatch{Owner: v.Owner, Target: target.ID, Topic: target.Topic}, nil
}

// DirectDispatch publishes a command without a code, on the authority of
// an already-authenticated admin. The activation is audited against the
// admin's name with the code placeholder.
func (g *Gate) DirectDispatch(ctx context.Context, owner, targetID, command string) (Dispatch, error) {
	target, ok := g.registry.Resolve(targetID)
	if !ok {
		return Dispatch{}, fmt.Errorf("%w: %q", relay.ErrUnknownTarget, targetID)
	}
	payload, err := target.Encode(command)
	if err != nil {
		return Dispatch{}, fmt.Errorf("encode command for %s: %w", target.ID, err)
	}
	if err := g.publisher.Publish(ctx, target.Topic, payload); err != nil {
		return Dispatch{}, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	if err := g.log.RecordActivation(ctx, owner, "", target.ID); err != nil {
		return Dispatch{}, err
	}
	return Dispatch{Owner: owner, Target: target.ID, Topic: target.Topic}, nil
}
