package eod

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic-platform/internal/ledger"
)

func TestDay_UTCKey(t *testing.T) {
	ts := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	if d := Day(ts); d != "2025-03-09" {
		t.Fatalf("expected UTC day key, got %s", d)
	}
}

func TestLock_ValidatesArguments(t *testing.T) {
	svc := NewService(nil, ledger.NewService(ledger.NewMemoryStore()))
	ctx := context.Background()

	if _, err := svc.Lock(ctx, ledger.EventContext{}, "2025-03-09"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing branch, got %v", err)
	}
	if _, err := svc.Lock(ctx, ledger.EventContext{BranchID: "b"}, "09/03/2025"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad day format, got %v", err)
	}
}

func TestUnlock_ValidatesArguments(t *testing.T) {
	svc := NewService(nil, ledger.NewService(ledger.NewMemoryStore()))
	ctx := context.Background()

	if err := svc.Unlock(ctx, ledger.EventContext{}, "2025-03-09"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing branch, got %v", err)
	}
	if err := svc.Unlock(ctx, ledger.EventContext{BranchID: "b"}, "not-a-day"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad day format, got %v", err)
	}
}

func TestLockPayload_Canonicalizable(t *testing.T) {
	p := lockPayload(DayLock{
		BranchID: "b",
		Day:      "2025-03-09",
		LockedBy: "u-1",
		LockedAt: time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC),
	})
	if _, err := ledger.Canonicalize(p); err != nil {
		t.Fatalf("lock payload must canonicalize: %v", err)
	}
	// Raw time.Time would hash differently after the JSON storage round trip.
	if got, ok := p["locked_at"].(string); !ok || got != "2025-03-09T18:00:00.000000Z" {
		t.Fatalf("locked_at must be the canonical time string, got %#v", p["locked_at"])
	}
}
