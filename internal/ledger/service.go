package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Service is the append/read surface business code talks to.
//
// IMPORTANT:
// - Appends must happen inside (or immediately after) the business
//   transaction they describe, so "no record" and "mutation not committed"
//   stay consistent. Use AppendEventTx for the in-transaction path.
// - A failed append is an error the caller must handle; audit writes are
//   never silently skipped.
type Service struct {
	store Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// AppendEvent records one mutating action on the branch's chain.
// before/after may be nil (both nil only for pure system events).
func (s *Service) AppendEvent(ctx context.Context, ec EventContext, action Action, modelName, objectID string, before, after map[string]any) (Record, error) {
	rec, err := s.buildRecord(ec, action, modelName, objectID, before, after)
	if err != nil {
		return Record{}, err
	}
	return s.store.Append(ctx, rec)
}

// AppendEventTx records the event inside a caller-owned transaction.
// The configured store must support transactional appends.
func (s *Service) AppendEventTx(ctx context.Context, tx *sql.Tx, ec EventContext, action Action, modelName, objectID string, before, after map[string]any) (Record, error) {
	ta, ok := s.store.(TxAppender)
	if !ok {
		return Record{}, errors.New("ledger: store does not support transactional append")
	}
	rec, err := s.buildRecord(ec, action, modelName, objectID, before, after)
	if err != nil {
		return Record{}, err
	}
	return ta.AppendTx(ctx, tx, rec)
}

func (s *Service) buildRecord(ec EventContext, action Action, modelName, objectID string, before, after map[string]any) (Record, error) {
	if s.store == nil {
		return Record{}, errors.New("ledger: store not configured")
	}
	if ec.BranchID == "" {
		return Record{}, fmt.Errorf("%w: branch_id required", ErrInvalidArgument)
	}
	if !action.Valid() {
		return Record{}, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, action)
	}
	if modelName == "" {
		return Record{}, fmt.Errorf("%w: model_name required", ErrInvalidArgument)
	}

	rec := Record{
		BranchID:  ec.BranchID,
		UserID:    ec.UserID,
		DeviceID:  ec.DeviceID,
		IPAddress: ec.IPAddress,
		Action:    action,
		ModelName: modelName,
		ObjectID:  objectID,
		Before:    before,
		After:     after,
		// Truncate to the canonical microsecond precision up front so the
		// hashed timestamp survives a Postgres round trip bit-exact.
		Timestamp: s.clock().UTC().Truncate(time.Microsecond),
	}

	// Reject un-canonicalizable payloads before any hash is computed or row
	// written.
	if _, err := Canonicalize(hashedPayload(rec)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Trail returns the full ordered history of one business entity within a
// branch. Callers must apply a redaction Policy before rendering to any
// non-privileged viewer.
func (s *Service) Trail(ctx context.Context, branchID, modelName, objectID string) ([]Record, error) {
	if branchID == "" || modelName == "" || objectID == "" {
		return nil, ErrInvalidArgument
	}
	return s.store.Trail(ctx, branchID, modelName, objectID)
}

// TailHash exposes the branch chain tail (Genesis when empty).
func (s *Service) TailHash(ctx context.Context, branchID string) (string, error) {
	if branchID == "" {
		return "", ErrInvalidArgument
	}
	return s.store.TailHash(ctx, branchID)
}

// VerificationReport replays [fromID, toID] of the branch chain.
// Sub-ranges are anchored on the record immediately preceding fromID; ranges
// starting at the chain head are anchored on Genesis. toID <= 0 means "to
// the current tail". Read-only; never blocks appends.
func (s *Service) VerificationReport(ctx context.Context, branchID string, fromID, toID int64) (Report, error) {
	if branchID == "" {
		return Report{}, ErrInvalidArgument
	}
	if fromID < 1 {
		fromID = 1
	}

	// A head range carries no explicit anchor; only then can Verify classify
	// a first-record break as a genesis mismatch.
	var opts VerifyOptions
	if fromID > 1 {
		anchor, err := s.store.ReadRange(ctx, branchID, fromID-1, fromID-1)
		if err != nil {
			return Report{}, err
		}
		if len(anchor) != 1 {
			return Report{}, fmt.Errorf("%w: anchor record %d", ErrNotFound, fromID-1)
		}
		opts.ExpectedPrevious = anchor[0].RecordHash
	}

	records, err := s.store.ReadRange(ctx, branchID, fromID, toID)
	if err != nil {
		return Report{}, err
	}
	return Verify(records, opts), nil
}
