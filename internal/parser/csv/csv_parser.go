// Package csv implements a streaming delimited-file parser that emits
// records.Record maps keyed by canonical header names.
//
// The loan export this pipeline consumes is semicolon-delimited with a
// header row; headers are canonicalised (diacritics folded, snake_case)
// before the optional header map applies, so "Código_Banco" and
// "codigo_banco" address the same column. Cell values stay raw strings;
// typing happens in the extractors.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"irpfetl/internal/inspect"
	"irpfetl/pkg/records"
)

// Options configures the parser. Zero values get sensible defaults.
type Options struct {
	// Comma is the field delimiter; ';' when zero (upstream export default).
	Comma rune

	// HasHeader indicates whether the first row carries column names.
	// Without a header the parser cannot key records and errors out.
	HasHeader bool

	// HeaderMap maps canonicalised source headers to final record keys.
	HeaderMap map[string]string

	// TrimSpace trims each cell value.
	TrimSpace bool
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Reader streams records from one delimited input.
type Reader struct {
	r    *csv.Reader
	cols []string
	trim bool
	line int
}

// NewReader reads and canonicalises the header row, then returns a
// record-oriented reader. Rows with a deviating cell count are handled
// per-row by Next, not here.
func NewReader(src io.Reader, opt Options) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.Comma = opt.Comma
	if cr.Comma == 0 {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	if !opt.HasHeader {
		return nil, fmt.Errorf("csv: input without header row is not supported")
	}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	cols := inspect.CanonicalHeaders(header)
	for i, c := range cols {
		if mapped, ok := opt.HeaderMap[c]; ok && mapped != "" {
			cols[i] = mapped
		}
	}

	return &Reader{r: cr, cols: cols, trim: opt.TrimSpace}, nil
}

// Columns exposes the canonical column names, in file order.
func (r *Reader) Columns() []string { return r.cols }

// Line reports the number of data rows read so far.
func (r *Reader) Line() int { return r.line }

// Next returns the next data row as a records.Record. Cells beyond the
// header width are dropped; missing trailing cells become nil. io.EOF
// marks exhaustion.
func (r *Reader) Next() (records.Record, error) {
	row, err := r.r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("csv: row %d: %w", r.line+1, err)
	}
	r.line++

	rec := make(records.Record, len(r.cols))
	for i, c := range r.cols {
		if i < len(row) {
			cell := row[i]
			if r.trim {
				cell = strings.TrimSpace(cell)
			}
			rec[c] = cell
		} else {
			rec[c] = nil
		}
	}
	return rec, nil
}

// ReadAll drains the reader. Helper for tests and small reference files.
func (r *Reader) ReadAll() ([]records.Record, error) {
	var out []records.Record
	for {
		rec, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}
