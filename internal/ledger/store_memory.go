package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory append-only chained store for tests and local
// development. The chain tail is the only mutable shared state; a single
// mutex serializes appends while reads copy out under the same lock (cheap at
// test scale).
type MemoryStore struct {
	mu     sync.Mutex
	chains map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]Record)}
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) (Record, error) {
	if rec.BranchID == "" {
		return Record{}, fmt.Errorf("%w: branch_id required", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[rec.BranchID]
	prev := Genesis
	if n := len(chain); n > 0 {
		prev = chain[n-1].RecordHash
	}

	rec.ID = int64(len(chain)) + 1
	rec.PreviousHash = prev

	hash, err := RecomputeHash(prev, rec)
	if err != nil {
		return Record{}, err
	}
	rec.RecordHash = hash

	s.chains[rec.BranchID] = append(chain, rec)
	return rec, nil
}

func (s *MemoryStore) TailHash(ctx context.Context, branchID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[branchID]
	if len(chain) == 0 {
		return Genesis, nil
	}
	return chain[len(chain)-1].RecordHash, nil
}

func (s *MemoryStore) ReadRange(ctx context.Context, branchID string, fromID, toID int64) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[branchID]
	if fromID < 1 {
		fromID = 1
	}
	if toID <= 0 || toID > int64(len(chain)) {
		toID = int64(len(chain))
	}
	if fromID > toID {
		return []Record{}, nil
	}

	out := make([]Record, 0, toID-fromID+1)
	// IDs are dense and 1-based in this store.
	for _, r := range chain[fromID-1 : toID] {
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) Trail(ctx context.Context, branchID, modelName, objectID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.chains[branchID] {
		if r.ModelName == modelName && r.ObjectID == objectID {
			out = append(out, r)
		}
	}
	return out, nil
}
