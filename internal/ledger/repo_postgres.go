package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists chains in Postgres.
//
// Assumed schema:
//
//	CREATE TABLE audit_chain_tails (
//	  branch_id  TEXT PRIMARY KEY,
//	  last_id    BIGINT NOT NULL,
//	  tail_hash  TEXT NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE audit_records (
//	  branch_id       TEXT NOT NULL,
//	  id              BIGINT NOT NULL,
//	  user_id         TEXT,
//	  device_id       TEXT,
//	  ip_address      TEXT,
//	  action          TEXT NOT NULL,
//	  model_name      TEXT NOT NULL,
//	  object_id       TEXT,
//	  before          JSONB,
//	  after           JSONB,
//	  previous_hash   TEXT NOT NULL,
//	  record_hash     TEXT NOT NULL,
//	  ts              TIMESTAMPTZ NOT NULL,
//	  duration_micros BIGINT NOT NULL DEFAULT 0,
//	  PRIMARY KEY (branch_id, id)
//	);
//	-- INSERT-only policy; optional trigger rejecting UPDATE/DELETE.
//
// Concurrency: appends lock the chain's audit_chain_tails row FOR UPDATE, so
// at most one append per chain is in flight; the insert and the tail bump
// commit as one transaction. A crash mid-append rolls back cleanly, leaving
// no partial record. Lock waits that exceed the transaction's context
// deadline surface as ErrChainBusy.
type PostgresStore struct {
	db *sql.DB

	// lockTimeout bounds the FOR UPDATE wait on the chain tail. Zero means
	// no statement-level bound; the context deadline still applies.
	lockTimeout time.Duration
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithLockTimeout bounds how long one append may wait on a contended chain
// tail. Exceeding it surfaces as ErrChainBusy.
func (s *PostgresStore) WithLockTimeout(d time.Duration) *PostgresStore {
	s.lockTimeout = d
	return s
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) (Record, error) {
	var out Record
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		r, err := s.appendTx(ctx, tx, rec)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return Record{}, mapAppendErr(err)
	}
	return out, nil
}

// AppendTx appends inside a caller-owned transaction, so a business mutation
// and its audit record commit or roll back together.
func (s *PostgresStore) AppendTx(ctx context.Context, tx *sql.Tx, rec Record) (Record, error) {
	r, err := s.appendTx(ctx, tx, rec)
	if err != nil {
		return Record{}, mapAppendErr(err)
	}
	return r, nil
}

func (s *PostgresStore) appendTx(ctx context.Context, tx *sql.Tx, rec Record) (Record, error) {
	if rec.BranchID == "" {
		return Record{}, fmt.Errorf("%w: branch_id required", ErrInvalidArgument)
	}

	lastID, tail, err := s.lockChainTail(ctx, tx, rec.BranchID)
	if err != nil {
		return Record{}, err
	}

	rec.ID = lastID + 1
	rec.PreviousHash = tail

	hash, err := RecomputeHash(tail, rec)
	if err != nil {
		return Record{}, err
	}
	rec.RecordHash = hash

	if err := insertRecord(ctx, tx, rec); err != nil {
		return Record{}, err
	}
	if err := bumpChainTail(ctx, tx, rec.BranchID, rec.ID, rec.RecordHash, rec.Timestamp); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) lockChainTail(ctx context.Context, tx *sql.Tx, branchID string) (int64, string, error) {
	if s.lockTimeout > 0 {
		// lock_timeout cannot be bound as a parameter; the value is a
		// config-sourced duration, never user input.
		q := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return 0, "", err
		}
	}

	// First append for a branch creates the tail row; ON CONFLICT keeps the
	// creation race-safe across concurrent first appends.
	const ins = `
INSERT INTO audit_chain_tails (branch_id, last_id, tail_hash, updated_at)
VALUES ($1, 0, $2, now())
ON CONFLICT (branch_id) DO NOTHING
`
	if _, err := tx.ExecContext(ctx, ins, branchID, Genesis); err != nil {
		return 0, "", err
	}

	const sel = `
SELECT last_id, tail_hash
FROM audit_chain_tails
WHERE branch_id = $1
FOR UPDATE
`
	var lastID int64
	var tail string
	if err := tx.QueryRowContext(ctx, sel, branchID).Scan(&lastID, &tail); err != nil {
		return 0, "", err
	}
	return lastID, tail, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	before, err := marshalPayload(r.Before)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	after, err := marshalPayload(r.After)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	const q = `
INSERT INTO audit_records (
  branch_id, id, user_id, device_id, ip_address, action, model_name, object_id,
  before, after, previous_hash, record_hash, ts, duration_micros
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err = tx.ExecContext(ctx, q,
		r.BranchID,
		r.ID,
		nullStr(r.UserID),
		nullStr(r.DeviceID),
		nullStr(r.IPAddress),
		string(r.Action),
		r.ModelName,
		nullStr(r.ObjectID),
		before,
		after,
		r.PreviousHash,
		r.RecordHash,
		r.Timestamp,
		r.Duration.Microseconds(),
	)
	return err
}

func bumpChainTail(ctx context.Context, tx *sql.Tx, branchID string, lastID int64, tailHash string, at time.Time) error {
	const q = `
UPDATE audit_chain_tails
SET last_id = $2, tail_hash = $3, updated_at = $4
WHERE branch_id = $1
`
	_, err := tx.ExecContext(ctx, q, branchID, lastID, tailHash, at)
	return err
}

func (s *PostgresStore) TailHash(ctx context.Context, branchID string) (string, error) {
	const q = `SELECT tail_hash FROM audit_chain_tails WHERE branch_id = $1`
	var tail string
	if err := s.db.QueryRowContext(ctx, q, branchID).Scan(&tail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Genesis, nil
		}
		return "", err
	}
	return tail, nil
}

func (s *PostgresStore) ReadRange(ctx context.Context, branchID string, fromID, toID int64) ([]Record, error) {
	if fromID < 1 {
		fromID = 1
	}
	q := `
SELECT branch_id, id, user_id, device_id, ip_address, action, model_name, object_id,
       before, after, previous_hash, record_hash, ts, duration_micros
FROM audit_records
WHERE branch_id = $1 AND id >= $2
`
	args := []any{branchID, fromID}
	if toID > 0 {
		q += ` AND id <= $3`
		args = append(args, toID)
	}
	q += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) Trail(ctx context.Context, branchID, modelName, objectID string) ([]Record, error) {
	const q = `
SELECT branch_id, id, user_id, device_id, ip_address, action, model_name, object_id,
       before, after, previous_hash, record_hash, ts, duration_micros
FROM audit_records
WHERE branch_id = $1 AND model_name = $2 AND object_id = $3
ORDER BY id ASC
`
	rows, err := s.db.QueryContext(ctx, q, branchID, modelName, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		var r Record
		var userID, deviceID, ipAddr, objectID sql.NullString
		var before, after []byte
		var durMicros int64
		if err := rows.Scan(
			&r.BranchID,
			&r.ID,
			&userID,
			&deviceID,
			&ipAddr,
			&r.Action,
			&r.ModelName,
			&objectID,
			&before,
			&after,
			&r.PreviousHash,
			&r.RecordHash,
			&r.Timestamp,
			&durMicros,
		); err != nil {
			return nil, err
		}
		r.UserID = userID.String
		r.DeviceID = deviceID.String
		r.IPAddress = ipAddr.String
		r.ObjectID = objectID.String
		r.Duration = time.Duration(durMicros) * time.Microsecond
		if err := unmarshalPayload(before, &r.Before); err != nil {
			return nil, err
		}
		if err := unmarshalPayload(after, &r.After); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalPayload(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func unmarshalPayload(b []byte, dst *map[string]any) error {
	if len(b) == 0 {
		*dst = nil
		return nil
	}
	// UseNumber keeps integers as their literal digits. Plain Unmarshal would
	// widen them to float64 and change their canonical form, making
	// verification flag untampered records.
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(dst)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// mapAppendErr translates transient contention into ErrChainBusy so callers
// can retry instead of silently dropping an audit entry.
func mapAppendErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrInvalidArgument) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrChainBusy, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return fmt.Errorf("%w: %v", ErrChainBusy, err)
		}
	}
	return err
}
