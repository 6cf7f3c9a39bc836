// Package model holds the typed row shapes that flow between the
// pipeline stages: raw history rows in, one enriched row per person and
// declaration day out.
//
// Nullable columns are pointers. A nil pointer always means SQL NULL,
// both when a field could not be decoded from its payload and when a
// left join found no match.
package model

import "time"

// IrpfRecord is one revision of a person's tax declaration, extracted
// from the raw IRPF history table.
type IrpfRecord struct {
	IrpfID       string
	PersonID     *int64
	CreatedAt    time.Time
	SafraCreated string // YYYYMM of CreatedAt
	Rev          *int64
	Value        string // opaque payload, passed through to the output
}

// LoanRecord is one personal-loan row, extracted from the raw loan table.
// Seq is the 1-based position of the row in its source stream; concurrent
// extraction delivers rows out of order, so ordering decisions downstream
// use Seq instead of arrival order.
type LoanRecord struct {
	Seq          int64
	LoanID       string
	PersonID     *int64
	CreatedAt    time.Time
	SafraCreated string
	ProductCode  *string
	State        *string
	BankCode     *string
	BranchNumber *string
}

// JoinedRecord pairs one IRPF revision with at most one matching loan.
// A miss keeps the loan side nil. The same IRPF revision appears once
// per matching loan when several loans share the person and day.
type JoinedRecord struct {
	Irpf          IrpfRecord
	LoanSeq       int64 // matched loan's source position, 0 on miss
	LoanID        *string
	BankCode      *string
	BranchNumber  *string
	CreatedAtIrpf string  // calendar date of the IRPF row, YYYY-MM-DD
	CreatedAtLoan *string // calendar date of the matched loan, nil on miss
}

// OutputRecord is the final projection: the winning revision of each
// (person, declaration day) group, carrying that row's loan attributes.
type OutputRecord struct {
	PersonID     *int64
	LoanID       *string
	IrpfID       string
	TimeStamp    time.Time // IRPF creation time, full precision
	BankCode     *string
	BranchNumber *string
	Rev          *int64
	Value        string
	Bank         *string // bank directory name, only when enrichment is on
}

// dayLayout renders a timestamp as its calendar date; time of day is
// deliberately dropped, this is the join key.
const dayLayout = "2006-01-02"

// safraLayout renders the monthly partition key.
const safraLayout = "200601"

// Day truncates t to its calendar date key.
func Day(t time.Time) string {
	return t.Format(dayLayout)
}

// Safra derives the monthly partition key from t.
func Safra(t time.Time) string {
	return t.Format(safraLayout)
}

// OutputColumns is the destination column order for CopyFrom. The bank
// column is appended separately when directory enrichment is enabled.
func OutputColumns() []string {
	return []string{
		"person_id", "loan_id", "irpf_id", "time_stamp",
		"bank_code_pl", "branch_number_pl", "rev", "value",
	}
}

// Row converts o into a positional row aligned with OutputColumns,
// with nil pointers becoming SQL NULLs.
func (o OutputRecord) Row() []any {
	return []any{
		nilableInt(o.PersonID),
		nilableStr(o.LoanID),
		o.IrpfID,
		o.TimeStamp,
		nilableStr(o.BankCode),
		nilableStr(o.BranchNumber),
		nilableInt(o.Rev),
		o.Value,
	}
}

func nilableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nilableStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
