// Package json implements an NDJSON parser that turns JSON objects into
// records.Record maps.
//
// It is deliberately simple and conservative:
//
//   - Supports newline-delimited JSON objects:
//     {"id":1,"created_at":"2023-05-10T08:30:00Z","value":"{...}"}
//   - Also supports multiple JSON objects in a stream (same as NDJSON).
//   - Non-object top-level values are skipped, not fatal; history-table
//     exports occasionally carry junk lines.
//
// Numbers decode as json.Number so integer identifiers keep full
// precision for the downstream payload coercions.
package json

import (
	"encoding/json"
	"fmt"
	"io"

	"irpfetl/pkg/records"
)

// Decoder wraps encoding/json.Decoder with a record-oriented API.
type Decoder struct {
	dec  *json.Decoder
	line int
}

// NewDecoder constructs a Decoder from an io.Reader.
func NewDecoder(r io.Reader) *Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &Decoder{dec: d}
}

// Next reads the next JSON object and converts it into a records.Record.
// io.EOF marks stream exhaustion. Non-object top-level values are
// silently skipped.
func (d *Decoder) Next() (records.Record, error) {
	for {
		var raw any
		if err := d.dec.Decode(&raw); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("ndjson: decode: %w", err)
		}
		d.line++

		if m, ok := raw.(map[string]any); ok {
			return records.Record(m), nil
		}
	}
}

// Line reports the number of objects decoded so far; used for row
// numbers in fault reports.
func (d *Decoder) Line() int { return d.line }

// DecodeAll reads every object from r. Helper for tests and small
// inputs; the pipeline streams with Next.
func DecodeAll(r io.Reader) ([]records.Record, error) {
	d := NewDecoder(r)
	var out []records.Record
	for {
		rec, err := d.Next()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}
