package ledger

import "strings"

// RedactedMarker replaces sensitive values in display copies of payloads.
const RedactedMarker = "[REDACTED]"

// defaultSensitivePatterns is the policy table of lowercase substrings that
// mark a map key as sensitive. Extend via NewPolicy, not by editing call sites.
var defaultSensitivePatterns = []string{
	"password",
	"token",
	"secret",
	"key",
	"ssn",
	"pan",
	"aadhaar",
	"credit_card",
	"cvv",
	"pin",
	"otp",
	"salt",
	"hash",
}

// Policy decides which payload fields are masked for display.
//
// Redaction is applied only to display/export copies, never to the payload
// used for hashing: the stored Before/After and the chain hash stay
// byte-for-byte the original data. Redacting before hashing would make the
// hash unverifiable against the true historical payload.
type Policy struct {
	patterns []string
}

// DefaultPolicy returns the built-in sensitive-field table.
func DefaultPolicy() Policy {
	return Policy{patterns: defaultSensitivePatterns}
}

// NewPolicy extends the default table with extra lowercase substrings.
func NewPolicy(extra ...string) Policy {
	p := Policy{patterns: make([]string, 0, len(defaultSensitivePatterns)+len(extra))}
	p.patterns = append(p.patterns, defaultSensitivePatterns...)
	for _, e := range extra {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			p.patterns = append(p.patterns, e)
		}
	}
	return p
}

// Sensitive reports whether a map key matches the policy table.
func (p Policy) Sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, pat := range p.patterns {
		if strings.Contains(k, pat) {
			return true
		}
	}
	return false
}

// Redact returns a display copy of v with sensitive values replaced by
// RedactedMarker. The input is never mutated. Idempotent:
// Redact(Redact(v)) == Redact(v).
func (p Policy) Redact(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if p.Sensitive(k) {
				out[k] = RedactedMarker
				continue
			}
			out[k] = p.Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = p.Redact(e)
		}
		return out
	default:
		return v
	}
}

// RedactRecord returns a display copy of r with Before/After redacted.
func (p Policy) RedactRecord(r Record) Record {
	out := r
	if r.Before != nil {
		out.Before = p.Redact(r.Before).(map[string]any)
	}
	if r.After != nil {
		out.After = p.Redact(r.After).(map[string]any)
	}
	return out
}
