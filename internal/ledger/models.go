package ledger

import "time"

// Record is an immutable, hash-chained audit entry.
//
// Invariants:
// - Records are never updated or deleted once persisted.
// - record[i].PreviousHash == record[i-1].RecordHash within a chain.
// - The first record of a chain carries PreviousHash == Genesis.
// - RecordHash is a pure function of (PreviousHash, Timestamp, BranchID,
//   UserID, Action, ModelName, ObjectID, Before, After) and is recomputable
//   by any party holding those fields.
//
// Chains are scoped per branch: BranchID is both the tenancy boundary and the
// chain key. Chains never cross-link.
//
// Storage recommendation (Postgres):
// - Table audit_records with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.

type Record struct {
	// ID is the per-chain sequence number assigned at append time.
	// It defines chain order, not wall-clock order.
	ID int64 `json:"id" db:"id"`

	BranchID string `json:"branch_id" db:"branch_id"`

	// UserID is empty for system-originated events.
	UserID string `json:"user_id,omitempty" db:"user_id"`

	DeviceID  string `json:"device_id,omitempty" db:"device_id"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	Action Action `json:"action" db:"action"`

	// ModelName and ObjectID identify the business entity the event concerns.
	ModelName string `json:"model_name" db:"model_name"`
	ObjectID  string `json:"object_id,omitempty" db:"object_id"`

	// Before and After are the entity state around the mutation.
	// Both nil only for pure system events; one nil signals creation or deletion.
	Before map[string]any `json:"before,omitempty" db:"before"`
	After  map[string]any `json:"after,omitempty" db:"after"`

	// PreviousHash links to the preceding record; Genesis for the first record.
	PreviousHash string `json:"previous_hash" db:"previous_hash"`
	RecordHash   string `json:"record_hash" db:"record_hash"`

	// Timestamp is part of the hashed payload; it cannot be corrected after
	// the fact without breaking the chain.
	Timestamp time.Time `json:"timestamp" db:"ts"`

	// Duration of the originating operation. Informational only; NOT hashed.
	Duration time.Duration `json:"duration,omitempty" db:"duration_micros"`
}

type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionDelete       Action = "DELETE"
	ActionEODLock      Action = "EOD_LOCK"
	ActionEODUnlock    Action = "EOD_UNLOCK"
	ActionConfigUpdate Action = "CONFIG_UPDATE"
	ActionOther        Action = "OTHER"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionEODLock, ActionEODUnlock, ActionConfigUpdate, ActionOther:
		return true
	default:
		return false
	}
}

// EventContext is the provenance metadata supplied by callers.
// The ledger hashes and stores BranchID/UserID but does not interpret or
// validate identities; that belongs to the auth layer.
type EventContext struct {
	BranchID  string
	UserID    string // empty for system actions
	DeviceID  string
	IPAddress string
}

// hashedPayload is the exact set of fields covered by RecordHash.
// DeviceID, IPAddress and Duration are deliberately excluded: they are
// operational metadata, not evidence.
func hashedPayload(r Record) map[string]any {
	return map[string]any{
		"timestamp":  CanonicalTime(r.Timestamp),
		"branch_id":  r.BranchID,
		"user_id":    nullableString(r.UserID),
		"action":     string(r.Action),
		"model_name": r.ModelName,
		"object_id":  nullableString(r.ObjectID),
		"before":     nullableMap(r.Before),
		"after":      nullableMap(r.After),
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}
