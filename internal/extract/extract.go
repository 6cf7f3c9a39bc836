// Package extract turns raw history rows into typed pipeline records.
//
// Both extractors are pure row-wise transforms: no ordering guarantees,
// no side effects beyond the fault callback. Field-level decode faults
// produce a null for that field and a Fault notification; they never
// drop the row and never abort the run.
package extract

import (
	"fmt"
	"time"

	"irpfetl/internal/model"
	"irpfetl/internal/payload"
	"irpfetl/pkg/records"
)

// Fault describes a single row-level extraction problem.
type Fault struct {
	Row    int    // 1-based position in the source stream
	Field  string // affected output field
	Reason string
}

// timeLayouts are the accepted created_at renderings for file sources.
// Database sources hand over time.Time directly.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime coerces a created_at cell. The zero time plus ok=false
// marks an unusable timestamp; the caller keeps the row.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// identifier renders an id cell as a string; numeric ids keep their
// decimal form.
func identifier(v any) string {
	s, ok := payload.AsString(v)
	if !ok {
		return ""
	}
	return s
}

// IrpfExtractor decodes raw IRPF history rows
// ({id, created_at, value}) into model.IrpfRecord.
type IrpfExtractor struct {
	// OnFault receives field-level decode faults; nil disables reporting.
	OnFault func(Fault)
}

// Extract converts one raw row. row is the 1-based stream position used
// in fault reports.
func (e IrpfExtractor) Extract(row int, r records.Record) model.IrpfRecord {
	rec := model.IrpfRecord{
		IrpfID: identifier(r["id"]),
		Value:  payload.Raw(r["value"]),
	}

	if ts, ok := parseTime(r["created_at"]); ok {
		rec.CreatedAt = ts
		rec.SafraCreated = model.Safra(ts)
	} else {
		e.fault(row, "created_at", fmt.Sprintf("unparseable timestamp %v", r["created_at"]))
	}

	if pid, ok := payload.IntField(r["value"], "personId"); ok {
		rec.PersonID = &pid
	} else {
		e.fault(row, "person_id", "payload key personId absent or non-numeric")
	}

	if rev, ok := payload.IntField(r["value"], "rev"); ok {
		rec.Rev = &rev
	} else {
		e.fault(row, "rev", "payload key rev absent or non-numeric")
	}

	return rec
}

func (e IrpfExtractor) fault(row int, field, reason string) {
	if e.OnFault != nil {
		e.OnFault(Fault{Row: row, Field: field, Reason: reason})
	}
}

// LoanExtractor decodes raw personal-loan rows
// ({id, person_id, created_at, product_code, state, bank_info}) into
// model.LoanRecord.
type LoanExtractor struct {
	OnFault func(Fault)
}

// Extract converts one raw loan row.
func (e LoanExtractor) Extract(row int, r records.Record) model.LoanRecord {
	rec := model.LoanRecord{
		Seq:    int64(row),
		LoanID: identifier(r["id"]),
	}

	if ts, ok := parseTime(r["created_at"]); ok {
		rec.CreatedAt = ts
		rec.SafraCreated = model.Safra(ts)
	} else {
		e.fault(row, "created_at", fmt.Sprintf("unparseable timestamp %v", r["created_at"]))
	}

	if pid, ok := payload.AsInt(r["person_id"]); ok {
		rec.PersonID = &pid
	} else {
		e.fault(row, "person_id", "person_id absent or non-numeric")
	}

	if s, ok := payload.AsString(r["product_code"]); ok {
		rec.ProductCode = &s
	}
	if s, ok := payload.AsString(r["state"]); ok {
		rec.State = &s
	}

	// Bank attributes stay strings: codes carry leading zeros and the
	// upstream exporter pads them (bank to 3, branch to 4).
	if s, ok := payload.StringField(r["bank_info"], "bankCode"); ok {
		s = zfill(s, 3)
		rec.BankCode = &s
	} else {
		e.fault(row, "bank_code", "payload key bankCode absent")
	}
	if s, ok := payload.StringField(r["bank_info"], "branchNumber"); ok {
		s = zfill(s, 4)
		rec.BranchNumber = &s
	} else {
		e.fault(row, "branch_number", "payload key branchNumber absent")
	}

	return rec
}

func (e LoanExtractor) fault(row int, field, reason string) {
	if e.OnFault != nil {
		e.OnFault(Fault{Row: row, Field: field, Reason: reason})
	}
}

// zfill left-pads a purely numeric code with zeros to width. Codes with
// non-digit characters pass through untouched.
func zfill(s string, width int) string {
	if len(s) >= width || s == "" {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	pad := make([]byte, width-len(s))
	for i := range pad {
		pad[i] = '0'
	}
	return string(pad) + s
}
