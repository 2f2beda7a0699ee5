package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// TimeLayout is the one canonical timestamp format used for hashing.
// RFC 3339 UTC with fixed microsecond precision; the same layout is applied
// at write time and at verification time, so formatting drift alone can never
// produce a false tamper positive.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// CanonicalTime renders t in the canonical hashing format.
func CanonicalTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Canonicalize renders a payload as deterministic bytes suitable for hashing.
//
// Rules:
// - map keys are emitted in lexicographic order at every nesting level
// - list order is preserved (it is semantically meaningful)
// - strings are JSON-escaped, nil is "null"
// - numbers render exactly as encoding/json renders them, so a payload
//   hashes to the same bytes before and after a JSON storage round trip
// - money and other decimals should travel as strings; float64 is accepted
//   but NaN/Inf are rejected as ErrMalformedPayload
// - time values must be pre-rendered: timestamps as CanonicalTime strings,
//   durations as integer units. Raw time.Time/time.Duration are rejected
//   because their stored JSON form would diverge from any fixed layout here.
//
// The function is pure: the same input yields the same bytes on any machine.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeCanonicalString(buf, x)
	case json.Number:
		if _, err := x.Float64(); err != nil {
			return fmt.Errorf("%w: bad number %q", ErrMalformedPayload, x.String())
		}
		buf.WriteString(x.String())
	case int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(x, 10))
	case float32:
		return writeCanonicalFloat(buf, float64(x), 32)
	case float64:
		return writeCanonicalFloat(buf, x, 64)
	case time.Time, time.Duration:
		return fmt.Errorf("%w: %T in payload; render timestamps with CanonicalTime and durations as integer units", ErrMalformedPayload, v)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, x[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, e)
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrMalformedPayload, v)
	}
	return nil
}

func writeCanonicalFloat(buf *bytes.Buffer, f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", ErrMalformedPayload)
	}
	// Mirror encoding/json's float rendering exactly: shortest form, 'f'
	// unless the magnitude forces scientific notation, small negative
	// exponents trimmed (1e-09 -> 1e-9). A float that took the JSON storage
	// round trip then canonicalizes to the same bytes it was hashed with.
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) ||
			bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}
	b := strconv.AppendFloat(nil, f, format, -1, bits)
	if format == 'e' {
		if n := len(b); n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	buf.Write(b)
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string is deterministic and never fails.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
