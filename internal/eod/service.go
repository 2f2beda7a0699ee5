// Package eod closes a branch's business day. Once a day is locked, billing
// mutations for that day are rejected until an explicit unlock; both the lock
// and the unlock land on the branch's audit chain.
package eod

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinic-platform/internal/ledger"
	"clinic-platform/pkg/utils"
)

// ModelName is the entity name day locks carry in audit records.
const ModelName = "eod.DayLock"

// DayLayout is the calendar-day key format.
const DayLayout = "2006-01-02"

// Day renders t as the UTC calendar day key. Branch-local day boundaries are
// a deployment concern; the lock key is UTC.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NOTE: This service assumes the following table exists:
//
//	CREATE TABLE eod_locks (
//	  branch_id TEXT NOT NULL,
//	  day       DATE NOT NULL,
//	  locked_by TEXT NOT NULL,
//	  locked_at TIMESTAMPTZ NOT NULL,
//	  PRIMARY KEY (branch_id, day)
//	);

type DayLock struct {
	BranchID string    `json:"branch_id" db:"branch_id"`
	Day      string    `json:"day" db:"day"`
	LockedBy string    `json:"locked_by" db:"locked_by"`
	LockedAt time.Time `json:"locked_at" db:"locked_at"`
}

var (
	ErrInvalidArgument = errors.New("eod: invalid argument")
	ErrAlreadyLocked   = errors.New("eod: day already locked")
	ErrNotLocked       = errors.New("eod: day is not locked")
)

type Service struct {
	db     *sql.DB
	ledger *ledger.Service
	clock  func() time.Time
}

func NewService(db *sql.DB, ldg *ledger.Service) *Service {
	return &Service{db: db, ledger: ldg, clock: time.Now}
}

// Lock closes the given day for the caller's branch and records EOD_LOCK on
// the audit chain in the same transaction.
func (s *Service) Lock(ctx context.Context, ec ledger.EventContext, day string) (DayLock, error) {
	if ec.BranchID == "" {
		return DayLock{}, ErrInvalidArgument
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return DayLock{}, ErrInvalidArgument
	}

	lock := DayLock{
		BranchID: ec.BranchID,
		Day:      day,
		LockedBy: ec.UserID,
		LockedAt: s.clock().UTC(),
	}

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO eod_locks (branch_id, day, locked_by, locked_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (branch_id, day) DO NOTHING
`
		res, err := tx.ExecContext(ctx, q, lock.BranchID, lock.Day, lock.LockedBy, lock.LockedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyLocked
		}

		_, err = s.ledger.AppendEventTx(ctx, tx, ec, ledger.ActionEODLock, ModelName, lockObjectID(lock.BranchID, day),
			nil, lockPayload(lock))
		return err
	})
	if err != nil {
		return DayLock{}, err
	}
	return lock, nil
}

// Unlock reopens the day and records EOD_UNLOCK in the same transaction.
func (s *Service) Unlock(ctx context.Context, ec ledger.EventContext, day string) error {
	if ec.BranchID == "" {
		return ErrInvalidArgument
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return ErrInvalidArgument
	}

	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
DELETE FROM eod_locks
WHERE branch_id = $1 AND day = $2
RETURNING locked_by, locked_at
`
		var old DayLock
		old.BranchID = ec.BranchID
		old.Day = day
		if err := tx.QueryRowContext(ctx, q, ec.BranchID, day).Scan(&old.LockedBy, &old.LockedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotLocked
			}
			return err
		}

		_, err := s.ledger.AppendEventTx(ctx, tx, ec, ledger.ActionEODUnlock, ModelName, lockObjectID(ec.BranchID, day),
			lockPayload(old), nil)
		return err
	})
}

// IsLockedTx checks the lock inside a caller-owned transaction, so business
// mutations and the lock check see the same snapshot.
func IsLockedTx(ctx context.Context, tx *sql.Tx, branchID, day string) (bool, error) {
	const q = `SELECT 1 FROM eod_locks WHERE branch_id = $1 AND day = $2`
	var one int
	if err := tx.QueryRowContext(ctx, q, branchID, day).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func lockObjectID(branchID, day string) string {
	return branchID + ":" + day
}

// lockPayload renders the lock as audit state. locked_at travels as the
// canonical time string so the hashed bytes survive the JSON storage round
// trip unchanged.
func lockPayload(l DayLock) map[string]any {
	return map[string]any{
		"day":       l.Day,
		"locked_by": l.LockedBy,
		"locked_at": ledger.CanonicalTime(l.LockedAt),
	}
}
