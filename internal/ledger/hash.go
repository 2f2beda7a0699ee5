package ledger

import (
	"crypto/sha256"
	"encoding/hex"
)

// Genesis is the well-known sentinel standing in for the previous hash of the
// first record in every chain.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// ComputeHash derives a record hash from the previous record's hash and the
// canonical payload bytes: SHA-256(previous_hash || canonical), hex-encoded.
// Pure function; safe to call from any goroutine.
func ComputeHash(previousHash string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// RecomputeHash recomputes the chain hash a record should carry given its
// previous hash. Verification and external auditors use this to check the
// stored RecordHash.
func RecomputeHash(previousHash string, r Record) (string, error) {
	canonical, err := Canonicalize(hashedPayload(r))
	if err != nil {
		return "", err
	}
	return ComputeHash(previousHash, canonical), nil
}
