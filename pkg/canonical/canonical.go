// Package canonical produces deterministic bytes and content hashes for
// commitment payloads. Two semantically equal records always canonicalize to
// byte-identical output regardless of field order, so the SHA-256 of the
// canonical form is a stable content address.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformed marks input that cannot be canonicalized: cyclic structures,
// non-serializable values, or numbers that fail to parse.
var ErrMalformed = errors.New("canonical: malformed input")

// HashLength is the length of the hex digest returned by Hash.
const HashLength = 64

// Marshal serializes v deterministically. Mapping keys are sorted
// lexicographically at every depth, sequence order is preserved, and numeric
// values are rendered in a single canonical decimal form (no trailing zeros,
// no exponent drift). The output is valid JSON.
func Marshal(v any) ([]byte, error) {
	tree, err := normalize(prepare(v))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the hex-encoded SHA-256 digest of the canonical bytes.
func Hash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// HashObject canonicalizes v and returns both its content hash and the
// canonical payload bytes.
func HashObject(v any) (string, []byte, error) {
	payload, err := Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return Hash(payload), payload, nil
}

// maxPrepareDepth stops the decimal prepass from chasing cyclic maps; the
// JSON encoder reports the cycle itself once the prepass gives up.
const maxPrepareDepth = 200

// prepare rewrites decimal values into plain number literals ahead of the
// JSON round-trip; shopspring decimals marshal quoted by default, which would
// make "3.50" and 3.5 hash differently.
func prepare(v any) any {
	return prepareDepth(v, 0)
}

func prepareDepth(v any, depth int) any {
	if depth > maxPrepareDepth {
		return v
	}
	switch val := v.(type) {
	case decimal.Decimal:
		return json.Number(val.String())
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return json.Number(val.String())
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = prepareDepth(item, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = prepareDepth(item, depth+1)
		}
		return out
	default:
		return v
	}
}

// normalize reduces arbitrary input to the generic tree the encoder accepts:
// map[string]any, []any, json.Number, string, bool, nil. Routing through
// encoding/json both flattens structs and rejects cycles and unsupported
// values.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return tree, nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		escaped, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		buf.Write(escaped)
	case json.Number:
		canonical, err := canonicalNumber(val.String())
		if err != nil {
			return err
		}
		buf.WriteString(canonical)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			escaped, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			buf.Write(escaped)
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported value %T", ErrMalformed, v)
	}
	return nil
}

// canonicalNumber renders a numeric literal without trailing fractional
// zeros or exponent notation, so "3.50", "3.5" and "0.35e1" all canonicalize
// to "3.5".
func canonicalNumber(literal string) (string, error) {
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return "", fmt.Errorf("%w: invalid number %q", ErrMalformed, literal)
	}
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" || s == "" {
		s = "0"
	}
	return s, nil
}
