package code

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"gate-control-plane/internal/audit"
	auditdomain "gate-control-plane/internal/audit/domain"
)

func newTestStore(t *testing.T) (*Store, *audit.Log) {
	t.Helper()
	auditLog := audit.NewLog(audit.NewMemoryStore())
	return NewStore(auditLog, 0), auditLog
}

func entriesOf(t *testing.T, auditLog *audit.Log) []auditdomain.Entry {
	t.Helper()
	entries, err := auditLog.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return entries
}

func TestIssue_GeneratesFiveDigitCode(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	issued, err := store.Issue(ctx, "Marco", nil, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !regexp.MustCompile(`^[1-9]\d{4}$`).MatchString(issued.Code) {
		t.Errorf("code = %q, want 5 decimal digits in [10000, 99999]", issued.Code)
	}
	if issued.Owner != "Marco" {
		t.Errorf("owner = %q, want %q", issued.Owner, "Marco")
	}
}

func TestIssue_DefaultsValidFromToNow(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFn = func() time.Time { return now }

	issued, err := store.Issue(context.Background(), "Marco", nil, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !issued.ValidFrom.Equal(now) {
		t.Errorf("ValidFrom = %v, want %v", issued.ValidFrom, now)
	}
}

func TestIssue_EmitsCreated(t *testing.T) {
	store, auditLog := newTestStore(t)

	issued, err := store.Issue(context.Background(), "Marco", nil, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	entries := entriesOf(t, auditLog)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].Action != auditdomain.ActionCreated {
		t.Errorf("action = %s, want CREATED", entries[0].Action)
	}
	if entries[0].Code != issued.Code || entries[0].Owner != "Marco" {
		t.Errorf("entry = %+v, want code %s owner Marco", entries[0], issued.Code)
	}
}

func TestIssue_RejectsInvalidWindow(t *testing.T) {
	store, auditLog := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFn = func() time.Time { return now }

	cases := []struct {
		name       string
		validUntil time.Time
	}{
		{"until equals from", now},
		{"until before from", now.Add(-time.Second)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Issue(context.Background(), "Marco", nil, tc.validUntil)
			if !errors.Is(err, ErrInvalidWindow) {
				t.Fatalf("err = %v, want ErrInvalidWindow", err)
			}
		})
	}

	if store.Len() != 0 {
		t.Errorf("store has %d codes after rejected issues, want 0", store.Len())
	}
	if n := len(entriesOf(t, auditLog)); n != 0 {
		t.Errorf("audit has %d entries after rejected issues, want 0", n)
	}
}

func TestIssue_ExplicitWindow(t *testing.T) {
	store, _ := newTestStore(t)
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := from.Add(time.Hour)

	issued, err := store.Issue(context.Background(), "Marco", &from, until)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !issued.ValidFrom.Equal(from) || !issued.ValidUntil.Equal(until) {
		t.Errorf("window = [%v, %v), want [%v, %v)", issued.ValidFrom, issued.ValidUntil, from, until)
	}
}

func TestIssue_RetriesOnCollision(t *testing.T) {
	store, _ := newTestStore(t)
	draws := []string{"11111", "11111", "22222"}
	store.drawFn = func() (string, error) {
		d := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return d, nil
	}

	first, err := store.Issue(context.Background(), "a", nil, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	if first.Code != "11111" {
		t.Fatalf("first code = %s, want 11111", first.Code)
	}

	second, err := store.Issue(context.Background(), "b", nil, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}
	if second.Code != "22222" {
		t.Errorf("second code = %s, want 22222 after collision retry", second.Code)
	}
}

func TestIssue_ExhaustedRetries(t *testing.T) {
	store, _ := newTestStore(t)
	store.drawFn = func() (string, error) { return "11111", nil }

	if _, err := store.Issue(context.Background(), "a", nil, time.Now().UTC().Add(time.Minute)); err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	_, err := store.Issue(context.Background(), "b", nil, time.Now().UTC().Add(time.Minute))
	if !errors.Is(err, ErrSpaceExhausted) {
		t.Fatalf("err = %v, want ErrSpaceExhausted", err)
	}
}

func TestIssue_ConcurrentCodesAreUnique(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	until := time.Now().UTC().Add(time.Hour)

	const n = 50
	var wg sync.WaitGroup
	codes := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issued, err := store.Issue(ctx, fmt.Sprintf("owner-%d", i), nil, until)
			if err != nil {
				t.Errorf("Issue: %v", err)
				return
			}
			codes[i] = issued.Code
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, c := range codes {
		if c == "" {
			continue
		}
		if seen[c] {
			t.Fatalf("code %s issued twice while both live", c)
		}
		seen[c] = true
	}
	if store.Len() != n {
		t.Errorf("store has %d codes, want %d", store.Len(), n)
	}
}

func TestLookup_DoesNotMutateOrLog(t *testing.T) {
	store, auditLog := newTestStore(t)
	issued, err := store.Issue(context.Background(), "Marco", nil, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	before := len(entriesOf(t, auditLog))

	if _, ok := store.Lookup(issued.Code); !ok {
		t.Fatal("Lookup should find a live code")
	}
	if _, ok := store.Lookup("00000"); ok {
		t.Fatal("Lookup should not find an unknown code")
	}

	if n := len(entriesOf(t, auditLog)); n != before {
		t.Errorf("Lookup wrote %d audit entries, want 0", n-before)
	}
}

func TestRevoke_RemovesAndLogsDeleted(t *testing.T) {
	store, auditLog := newTestStore(t)
	issued, err := store.Issue(context.Background(), "Marco", nil, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	prior, err := store.Revoke(context.Background(), issued.Code)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if prior.Owner != "Marco" {
		t.Errorf("prior owner = %q, want Marco", prior.Owner)
	}
	if _, ok := store.Lookup(issued.Code); ok {
		t.Error("code still live after Revoke")
	}

	entries := entriesOf(t, auditLog)
	last := entries[len(entries)-1]
	if last.Action != auditdomain.ActionDeleted || last.Owner != "Marco" {
		t.Errorf("last entry = %+v, want DELETED by Marco", last)
	}
}

func TestRevoke_AbsentCodeIsNotFoundAndUnlogged(t *testing.T) {
	store, auditLog := newTestStore(t)

	_, err := store.Revoke(context.Background(), "12345")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Repeated revocation of the same absent code stays NotFound.
	if _, err := store.Revoke(context.Background(), "12345"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second revoke err = %v, want ErrNotFound", err)
	}
	if n := len(entriesOf(t, auditLog)); n != 0 {
		t.Errorf("audit has %d entries, want 0", n)
	}
}

func TestExpireIfDue_OnlyOneRacerWins(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-2 * time.Minute)
	issued, err := store.Issue(context.Background(), "Marco", &from, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, first := store.ExpireIfDue(issued.Code, now)
	_, second := store.ExpireIfDue(issued.Code, now)
	if !first {
		t.Error("first ExpireIfDue should remove the code")
	}
	if second {
		t.Error("second ExpireIfDue must not observe a removal")
	}
}

func TestExpireIfDue_LeavesLiveCodes(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Now().UTC()
	issued, err := store.Issue(context.Background(), "Marco", nil, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, removed := store.ExpireIfDue(issued.Code, now); removed {
		t.Error("ExpireIfDue removed a code that is still inside its window")
	}
}

func TestExpireDue_RemovesOnlyClosedWindows(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-time.Hour)

	expired1, _ := store.Issue(context.Background(), "a", &from, now.Add(-2*time.Minute))
	expired2, _ := store.Issue(context.Background(), "b", &from, now.Add(-time.Minute))
	live, _ := store.Issue(context.Background(), "c", &from, now.Add(time.Minute))
	boundary, _ := store.Issue(context.Background(), "d", &from, now) // exclusive upper bound

	due := store.ExpireDue(now)
	if len(due) != 3 {
		t.Fatalf("removed %d codes, want 3", len(due))
	}
	// Ordered by expiry.
	if due[0].Code != expired1.Code || due[1].Code != expired2.Code || due[2].Code != boundary.Code {
		t.Errorf("removal order = %s,%s,%s; want %s,%s,%s",
			due[0].Code, due[1].Code, due[2].Code, expired1.Code, expired2.Code, boundary.Code)
	}
	if _, ok := store.Lookup(live.Code); !ok {
		t.Error("live code was removed by the sweep")
	}
}

func TestSnapshotActive_DerivesRemainingSeconds(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFn = func() time.Time { return now }

	later, _ := store.Issue(context.Background(), "b", nil, now.Add(2*time.Minute))
	sooner, _ := store.Issue(context.Background(), "a", nil, now.Add(time.Minute))

	active := store.SnapshotActive(now)
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	if active[0].Code != sooner.Code || active[1].Code != later.Code {
		t.Errorf("order = %s,%s; want soonest expiry first", active[0].Code, active[1].Code)
	}
	if active[0].RemainingSeconds != 60 {
		t.Errorf("remaining = %d, want 60", active[0].RemainingSeconds)
	}
	if active[1].RemainingSeconds != 120 {
		t.Errorf("remaining = %d, want 120", active[1].RemainingSeconds)
	}
}
