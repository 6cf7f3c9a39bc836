// Package records defines the generic row representation shared by the
// parsers and the extractors. A Record is one source row keyed by
// canonical column name; values keep whatever type the reader produced
// (string for delimited files, json.Number / map[string]any for NDJSON,
// driver-native types for database sources).
package records

// Record is a single parsed row.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
