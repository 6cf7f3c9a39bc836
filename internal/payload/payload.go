// Package payload decodes the semi-structured payload columns carried
// by the raw history tables (the IRPF "value" blob and the loan
// "bank_info" blob).
//
// A payload cell can arrive as a JSON string, raw bytes, or a map that
// an upstream reader already decoded. Field access never fails hard: a
// missing key, a non-object payload, or a value that cannot be coerced
// reports ok=false and the caller records a null for that field only.
// This keeps one malformed blob from taking out the run.
package payload

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Object returns the payload as a decoded JSON object. Strings and byte
// slices are unmarshalled with json.Number so large integer identifiers
// survive intact; maps pass through as-is.
func Object(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case string:
		return decodeObject([]byte(t))
	case []byte:
		return decodeObject(t)
	default:
		return nil, false
	}
}

func decodeObject(b []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// IntField extracts key from the payload as an integer. Numeric strings
// and integral floats coerce; anything else is a decode fault.
func IntField(v any, key string) (int64, bool) {
	m, ok := Object(v)
	if !ok {
		return 0, false
	}
	f, ok := m[key]
	if !ok || f == nil {
		return 0, false
	}
	return AsInt(f)
}

// StringField extracts key from the payload as a string. Numbers render
// in their decimal form; absent keys and null values are faults.
func StringField(v any, key string) (string, bool) {
	m, ok := Object(v)
	if !ok {
		return "", false
	}
	f, ok := m[key]
	if !ok || f == nil {
		return "", false
	}
	return AsString(f)
}

// AsInt coerces a scalar to int64.
func AsInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		// 7.0 style integrals still count.
		if f, err := t.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsString coerces a scalar to its string form.
func AsString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Raw renders the payload cell in its canonical pass-through form. The
// IRPF value blob rides along to the output table unmodified; map
// payloads from NDJSON sources re-marshal to compact JSON.
func Raw(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
