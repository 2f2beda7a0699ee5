package ledger

import (
	"context"
	"testing"
	"time"
)

func appendN(t *testing.T, store *MemoryStore, branch string, n int) []Record {
	t.Helper()
	svc := NewService(store)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	i := 0
	svc.clock = func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	}

	ec := EventContext{BranchID: branch, UserID: "u-1", DeviceID: "d-1", IPAddress: "10.0.0.1"}
	for k := 0; k < n; k++ {
		_, err := svc.AppendEvent(context.Background(), ec, ActionUpdate, "billing.Invoice", "INV-7",
			map[string]any{"amount": int64(k)},
			map[string]any{"amount": int64(k + 1)},
		)
		if err != nil {
			t.Fatalf("append %d: %v", k, err)
		}
	}
	recs, err := store.ReadRange(context.Background(), branch, 1, 0)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if len(recs) != n {
		t.Fatalf("expected %d records, got %d", n, len(recs))
	}
	return recs
}

func TestVerify_CleanChain(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 5)

	rep := Verify(recs, VerifyOptions{})
	if !rep.Verified {
		t.Fatalf("expected verified chain: %+v", rep.BrokenLinks)
	}
	if rep.TotalRecords != 5 {
		t.Fatalf("expected 5 records, got %d", rep.TotalRecords)
	}
	if rep.FirstHash != recs[0].RecordHash || rep.LastHash != recs[4].RecordHash {
		t.Fatalf("first/last hash mismatch")
	}
}

func TestVerify_TamperedPayloadIsContentMismatch(t *testing.T) {
	for k := 0; k < 3; k++ {
		recs := appendN(t, NewMemoryStore(), "br-1", 3)
		recs[k].After = map[string]any{"amount": int64(999)}

		rep := Verify(recs, VerifyOptions{})
		if rep.Verified {
			t.Fatalf("k=%d: tamper not detected", k)
		}
		found := false
		for _, b := range rep.BrokenLinks {
			if b.ID == recs[k].ID && b.Reason == ReasonContentMismatch {
				found = true
			}
			if b.ID < recs[k].ID {
				t.Fatalf("k=%d: record %d before the tamper point flagged: %+v", k, b.ID, rep.BrokenLinks)
			}
		}
		if !found {
			t.Fatalf("k=%d: expected CONTENT_MISMATCH at id %d, got %+v", k, recs[k].ID, rep.BrokenLinks)
		}
	}
}

func TestVerify_DeletedRecordIsLinkMismatch(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 4)

	// Drop record 2 from the range; record 3 is torn from its predecessor.
	torn := append([]Record{recs[0]}, recs[2], recs[3])

	rep := Verify(torn, VerifyOptions{})
	if rep.Verified {
		t.Fatalf("deletion not detected")
	}
	if len(rep.BrokenLinks) != 1 {
		t.Fatalf("expected a single break, got %+v", rep.BrokenLinks)
	}
	if rep.BrokenLinks[0].ID != recs[2].ID || rep.BrokenLinks[0].Reason != ReasonLinkMismatch {
		t.Fatalf("expected LINK_MISMATCH at id %d, got %+v", recs[2].ID, rep.BrokenLinks[0])
	}
}

func TestVerify_DeletedFirstRecordIsLinkMismatch(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 3)

	rep := Verify(recs[1:], VerifyOptions{})
	if rep.Verified {
		t.Fatalf("deletion not detected")
	}
	if rep.BrokenLinks[0].ID != recs[1].ID || rep.BrokenLinks[0].Reason != ReasonLinkMismatch {
		t.Fatalf("expected LINK_MISMATCH at id %d, got %+v", recs[1].ID, rep.BrokenLinks[0])
	}
}

func TestVerify_GenesisMismatchOnFirstRecord(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 2)
	recs[0].PreviousHash = "ff00000000000000000000000000000000000000000000000000000000000000"

	rep := Verify(recs, VerifyOptions{})
	if rep.Verified {
		t.Fatalf("anchor corruption not detected")
	}
	if rep.BrokenLinks[0].Reason != ReasonGenesisMismatch {
		t.Fatalf("expected GENESIS_MISMATCH, got %+v", rep.BrokenLinks[0])
	}
}

func TestVerify_ExplicitAnchorNeverClassifiesGenesis(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 3)

	// A re-exported range may renumber ids from 1. With an explicit anchor a
	// first-record break is a torn link, not a bad chain anchor.
	sub := []Record{recs[1], recs[2]}
	sub[0].ID = 1
	sub[1].ID = 2

	rep := Verify(sub, VerifyOptions{ExpectedPrevious: Genesis})
	if rep.Verified {
		t.Fatalf("expected a broken link")
	}
	if len(rep.BrokenLinks) != 1 || rep.BrokenLinks[0].Reason != ReasonLinkMismatch {
		t.Fatalf("expected LINK_MISMATCH with explicit anchor, got %+v", rep.BrokenLinks)
	}
}

func TestVerify_TamperedStoredHashBreaksTwice(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 3)
	recs[1].RecordHash = "ab" + recs[1].RecordHash[2:]

	rep := Verify(recs, VerifyOptions{})
	if rep.Verified {
		t.Fatalf("hash rewrite not detected")
	}
	// Record 2's own math fails, and record 3 no longer links to it.
	var content, link bool
	for _, b := range rep.BrokenLinks {
		if b.ID == recs[1].ID && b.Reason == ReasonContentMismatch {
			content = true
		}
		if b.ID == recs[2].ID && b.Reason == ReasonLinkMismatch {
			link = true
		}
	}
	if !content || !link {
		t.Fatalf("expected breaks at ids %d and %d, got %+v", recs[1].ID, recs[2].ID, rep.BrokenLinks)
	}
}

func TestVerify_SubRangeAnchoredOnPredecessor(t *testing.T) {
	recs := appendN(t, NewMemoryStore(), "br-1", 5)

	rep := Verify(recs[2:], VerifyOptions{ExpectedPrevious: recs[1].RecordHash})
	if !rep.Verified {
		t.Fatalf("anchored sub-range should verify: %+v", rep.BrokenLinks)
	}
	if rep.TotalRecords != 3 {
		t.Fatalf("expected 3 records, got %d", rep.TotalRecords)
	}
}

func TestVerify_EmptyRange(t *testing.T) {
	rep := Verify(nil, VerifyOptions{})
	if !rep.Verified || rep.TotalRecords != 0 {
		t.Fatalf("empty range must verify trivially: %+v", rep)
	}
}
