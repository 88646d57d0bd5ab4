package audit

import (
	"context"
	"fmt"
	"testing"

	"gate-control-plane/internal/audit/domain"
)

func TestRecord_AppendsInOrder(t *testing.T) {
	l := NewLog(NewMemoryStore())
	ctx := context.Background()

	actions := []domain.Action{domain.ActionCreated, domain.ActionVerified, domain.ActionExpired}
	for _, a := range actions {
		if err := l.Record(ctx, "Marco", "12345", a); err != nil {
			t.Fatalf("Record(%s): %v", a, err)
		}
	}

	entries, err := l.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("entries = %d, want %d", len(entries), len(actions))
	}
	for i, a := range actions {
		if entries[i].Action != a {
			t.Errorf("entries[%d].Action = %s, want %s", i, entries[i].Action, a)
		}
	}
}

func TestRecord_PlaceholdersForUnknownOwnerAndCode(t *testing.T) {
	l := NewLog(NewMemoryStore())
	ctx := context.Background()

	if err := l.Record(ctx, "", "99999", domain.ActionInvalid); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, "admin", "", domain.ActionActivatedRelay); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, _ := l.ReadAll(ctx)
	if entries[0].Owner != domain.Placeholder {
		t.Errorf("owner = %q, want placeholder", entries[0].Owner)
	}
	if entries[1].Code != domain.Placeholder {
		t.Errorf("code = %q, want placeholder", entries[1].Code)
	}
}

func TestRecordActivation_CarriesTarget(t *testing.T) {
	l := NewLog(NewMemoryStore())
	ctx := context.Background()

	if err := l.RecordActivation(ctx, "Marco", "12345", "relay_1"); err != nil {
		t.Fatalf("RecordActivation: %v", err)
	}

	entries, _ := l.ReadAll(ctx)
	if entries[0].Action != domain.ActionActivatedRelay {
		t.Errorf("action = %s, want ACTIVATED_RELAY", entries[0].Action)
	}
	if entries[0].Target != "relay_1" {
		t.Errorf("target = %q, want relay_1", entries[0].Target)
	}
}

func TestRead_Pagination(t *testing.T) {
	l := NewLog(NewMemoryStore())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.Record(ctx, "Marco", fmt.Sprintf("1000%d", i), domain.ActionCreated); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	page, err := l.Read(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d entries, want 2", len(page))
	}
	if page[0].Code != "10001" || page[1].Code != "10002" {
		t.Errorf("page codes = %s,%s; want 10001,10002", page[0].Code, page[1].Code)
	}

	tail, err := l.Read(ctx, 0, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tail) != 1 || tail[0].Code != "10004" {
		t.Errorf("tail = %+v, want the single last entry", tail)
	}

	past, err := l.Read(ctx, 10, 99)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("offset past end returned %d entries, want 0", len(past))
	}
}

func TestReadAll_ReturnsCopy(t *testing.T) {
	l := NewLog(NewMemoryStore())
	ctx := context.Background()
	if err := l.Record(ctx, "Marco", "12345", domain.ActionCreated); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, _ := l.ReadAll(ctx)
	entries[0].Owner = "tampered"

	again, _ := l.ReadAll(ctx)
	if again[0].Owner != "Marco" {
		t.Error("mutating a ReadAll result must not affect the trail")
	}
}
