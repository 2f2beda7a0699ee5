package ledger

import "errors"

var (
	// ErrChainBusy signals transient append contention on a chain tail.
	// Callers must retry; the append was not persisted.
	ErrChainBusy = errors.New("ledger: chain busy")

	// ErrMalformedPayload means the payload cannot be canonicalized.
	// The append is rejected before any hash is computed or row written.
	ErrMalformedPayload = errors.New("ledger: malformed payload")

	// ErrGenesisMismatch means the first record of a chain does not anchor
	// on the genesis sentinel; the whole chain's anchor is invalid.
	ErrGenesisMismatch = errors.New("ledger: genesis anchor mismatch")

	ErrNotFound        = errors.New("ledger: not found")
	ErrInvalidArgument = errors.New("ledger: invalid argument")
)
