// Package join implements the person/day left join between IRPF
// revisions and personal loans.
//
// The loan side is the small, fully indexable side: loans are loaded
// into an Index keyed by (person_id, calendar date) before any IRPF row
// is probed. Every IRPF row emits at least one JoinedRecord; a probe
// with several matching loans fans out one row per loan, in loan input
// order. That multiplicity is preserved on purpose and only collapses
// later in the ranking stage.
package join

import (
	"sort"
	"strconv"

	"irpfetl/internal/model"
)

// Index holds loans grouped by their join key.
type Index struct {
	byKey map[string][]model.LoanRecord
	size  int
}

// NewIndex returns an empty loan index.
func NewIndex() *Index {
	return &Index{byKey: make(map[string][]model.LoanRecord)}
}

// key builds the probe key. Only called with a non-nil person.
func key(personID int64, day string) string {
	return strconv.FormatInt(personID, 10) + "\x1f" + day
}

// Add indexes one loan. Loans without a person identifier can never
// match an IRPF row (NULL joins nothing) and are dropped here.
func (x *Index) Add(l model.LoanRecord) {
	if l.PersonID == nil || l.CreatedAt.IsZero() {
		return
	}
	k := key(*l.PersonID, model.Day(l.CreatedAt))
	x.byKey[k] = append(x.byKey[k], l)
	x.size++
}

// Len reports the number of indexed loans.
func (x *Index) Len() int { return x.size }

// Seal sorts every bucket by source position. Concurrent extraction
// delivers loans out of source order, so the build phase must Seal the
// index before the first Probe; fan-out order and the rank tie-break
// both depend on it.
func (x *Index) Seal() {
	for _, loans := range x.byKey {
		sort.Slice(loans, func(i, j int) bool { return loans[i].Seq < loans[j].Seq })
	}
}

// Probe left-joins one IRPF row against the index. The result is never
// empty: a miss (including rows whose person_id failed to decode)
// yields a single record with the loan side nil.
func (x *Index) Probe(irpf model.IrpfRecord) []model.JoinedRecord {
	day := model.Day(irpf.CreatedAt)

	if irpf.PersonID != nil {
		if loans := x.byKey[key(*irpf.PersonID, day)]; len(loans) > 0 {
			out := make([]model.JoinedRecord, len(loans))
			for i, l := range loans {
				loanDay := model.Day(l.CreatedAt)
				out[i] = model.JoinedRecord{
					Irpf:          irpf,
					LoanSeq:       l.Seq,
					LoanID:        strPtr(l.LoanID),
					BankCode:      l.BankCode,
					BranchNumber:  l.BranchNumber,
					CreatedAtIrpf: day,
					CreatedAtLoan: &loanDay,
				}
			}
			return out
		}
	}

	return []model.JoinedRecord{{
		Irpf:          irpf,
		CreatedAtIrpf: day,
	}}
}

func strPtr(s string) *string { return &s }
