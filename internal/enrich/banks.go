// Package enrich joins reference data onto finished output rows.
//
// The only directory currently supported maps bank codes to bank names,
// mirroring the institution registry the upstream system exports
// ("Codigo_Banco" / "BankName"). Codes absent from the directory
// resolve to the sentinel "###" the downstream consumers expect.
package enrich

import (
	"fmt"
	"os"

	"irpfetl/internal/config"
	"irpfetl/internal/model"
	csvparser "irpfetl/internal/parser/csv"
	"irpfetl/internal/payload"
)

// UnknownBank is recorded for codes missing from the directory.
const UnknownBank = "###"

// BankDirectory maps padded bank codes to institution names.
type BankDirectory struct {
	names map[string]string
}

// LoadBankDirectory reads a delimited directory file. Headers are
// canonicalised by the CSV reader, so "Codigo_Banco"/"BankName" and
// "bank_code"/"bank" both work.
func LoadBankDirectory(path string, opts config.Options) (*BankDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("enrich: open bank directory: %w", err)
	}
	defer f.Close()

	r, err := csvparser.NewReader(f, csvparser.Options{
		Comma:     opts.Rune("delimiter", ';'),
		HasHeader: true,
		TrimSpace: true,
	})
	if err != nil {
		return nil, err
	}

	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	d := &BankDirectory{names: make(map[string]string, len(recs))}
	for _, rec := range recs {
		code, ok := payload.AsString(cell(rec, "bank_code", "codigo_banco"))
		if !ok || code == "" {
			continue
		}
		name, ok := payload.AsString(cell(rec, "bank", "bankname", "bank_name"))
		if !ok {
			continue
		}
		d.names[code] = name
	}
	return d, nil
}

func cell(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Len reports the number of directory entries.
func (d *BankDirectory) Len() int { return len(d.names) }

// Name resolves a bank code; ok=false only when code itself is nil.
func (d *BankDirectory) Name(code *string) (string, bool) {
	if code == nil {
		return "", false
	}
	if n, ok := d.names[*code]; ok {
		return n, true
	}
	return UnknownBank, true
}

// Apply annotates every output row that has a bank code. Rows with a
// null code (join misses, decode faults) keep a null bank name.
func (d *BankDirectory) Apply(rows []model.OutputRecord) {
	for i := range rows {
		if n, ok := d.Name(rows[i].BankCode); ok {
			name := n
			rows[i].Bank = &name
		}
	}
}
