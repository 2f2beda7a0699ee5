package ledger

import (
	"context"
	"database/sql"
)

// Store is the persistence contract for the chained ledger.
//
// It MUST be append-only: no update or delete operations exist for records.
// Append is the only operation requiring serialization; implementations must
// guarantee a strict total order of (ID, PreviousHash, RecordHash) per chain
// with no forks. Reads observe a consistent snapshot and never block writers.
type Store interface {
	// Append assigns ID, PreviousHash and RecordHash under exclusive access
	// to the chain tail and persists the record atomically. A detected race
	// or lock timeout surfaces as ErrChainBusy; the record was not written.
	Append(ctx context.Context, rec Record) (Record, error)

	// TailHash returns the RecordHash of the most recently committed record
	// of the chain, or Genesis if the chain is empty.
	TailHash(ctx context.Context, branchID string) (string, error)

	// ReadRange returns records with fromID <= ID <= toID in ascending ID
	// order. toID <= 0 means "to the current tail".
	ReadRange(ctx context.Context, branchID string, fromID, toID int64) ([]Record, error)

	// Trail returns the full ordered history of one business entity.
	Trail(ctx context.Context, branchID, modelName, objectID string) ([]Record, error)
}

// TxAppender is implemented by stores that can append inside a caller-owned
// database transaction, so a business mutation and its audit record commit or
// roll back as one unit.
type TxAppender interface {
	AppendTx(ctx context.Context, tx *sql.Tx, rec Record) (Record, error)
}
