// Package rank collapses joined rows to the latest revision per
// (person, declaration day) group.
//
// Winner selection within a group:
//
//  1. largest rev wins; a null rev loses to any non-null rev
//  2. equal rev breaks by smallest irpf_id
//  3. equal irpf_id (one revision fanned out over several loans) keeps
//     the loan earliest in the loan source
//
// Every step compares row content, never arrival order, so reruns over
// the same inputs always produce the same winning row regardless of
// scheduling.
package rank

import (
	"sort"

	"irpfetl/internal/model"
)

// groupKey identifies one output partition. Rows whose person_id failed
// to decode group together under personNull, matching SQL GROUP BY
// semantics for NULL.
type groupKey struct {
	person     int64
	personNull bool
	day        string
}

func keyOf(j model.JoinedRecord) groupKey {
	k := groupKey{day: j.CreatedAtIrpf}
	if j.Irpf.PersonID == nil {
		k.personNull = true
	} else {
		k.person = *j.Irpf.PersonID
	}
	return k
}

// Accumulator incrementally tracks the winning row of every group it
// has seen. It is not safe for concurrent use; the pipeline runs one
// Accumulator per shard.
type Accumulator struct {
	winners map[groupKey]model.JoinedRecord
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{winners: make(map[groupKey]model.JoinedRecord)}
}

// Add offers one joined row to its group.
func (a *Accumulator) Add(j model.JoinedRecord) {
	k := keyOf(j)
	cur, ok := a.winners[k]
	if !ok || beats(j, cur) {
		a.winners[k] = j
	}
}

// Groups reports how many distinct (person, day) partitions were seen.
func (a *Accumulator) Groups() int { return len(a.winners) }

// beats reports whether challenger replaces the incumbent winner.
func beats(challenger, incumbent model.JoinedRecord) bool {
	cr, ir := challenger.Irpf.Rev, incumbent.Irpf.Rev
	switch {
	case cr == nil && ir == nil:
		// fall through to the id tie-break
	case cr == nil:
		return false
	case ir == nil:
		return true
	case *cr != *ir:
		return *cr > *ir
	}
	if challenger.Irpf.IrpfID != incumbent.Irpf.IrpfID {
		return challenger.Irpf.IrpfID < incumbent.Irpf.IrpfID
	}
	// Equal id means the same revision fanned out over several loans;
	// the loan earliest in the loan source wins.
	return challenger.LoanSeq < incumbent.LoanSeq
}

// Winners projects the rank-1 row of every group into output records,
// ordered by (day, person) so output is reproducible run to run.
func (a *Accumulator) Winners() []model.OutputRecord {
	keys := make([]groupKey, 0, len(a.winners))
	for k := range a.winners {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		// Null persons order after concrete ones.
		if keys[i].personNull != keys[j].personNull {
			return !keys[i].personNull
		}
		return keys[i].person < keys[j].person
	})

	out := make([]model.OutputRecord, len(keys))
	for i, k := range keys {
		out[i] = project(a.winners[k])
	}
	return out
}

func project(j model.JoinedRecord) model.OutputRecord {
	return model.OutputRecord{
		PersonID:     j.Irpf.PersonID,
		LoanID:       j.LoanID,
		IrpfID:       j.Irpf.IrpfID,
		TimeStamp:    j.Irpf.CreatedAt,
		BankCode:     j.BankCode,
		BranchNumber: j.BranchNumber,
		Rev:          j.Irpf.Rev,
		Value:        j.Irpf.Value,
	}
}
