package join

import (
	"testing"
	"time"

	"irpfetl/internal/model"
)

func i64(v int64) *int64   { return &v }
func str(s string) *string { return &s }

func loan(seq int64, id string, person int64, day time.Time, bank, branch string) model.LoanRecord {
	return model.LoanRecord{
		Seq:          seq,
		LoanID:       id,
		PersonID:     i64(person),
		CreatedAt:    day,
		BankCode:     str(bank),
		BranchNumber: str(branch),
	}
}

func irpf(id string, person *int64, at time.Time) model.IrpfRecord {
	return model.IrpfRecord{IrpfID: id, PersonID: person, CreatedAt: at}
}

/*
TestProbe verifies left-join semantics against the loan index:
  - a probe with no matching loan yields exactly one record with the
    loan side nil (the row is never dropped),
  - a single match carries the loan attributes and both calendar dates,
  - several loans on the same (person, day) fan out one record per
    loan, in loan input order,
  - the join key is the calendar date: differing times on the same day
    still match, the same time on different days does not,
  - a nil person_id never matches anything.
*/
func TestProbe(t *testing.T) {
	day := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)

	ix := NewIndex()
	ix.Add(loan(1, "L1", 7, day.Add(11*time.Hour), "033", "0050"))
	ix.Add(loan(2, "L2", 7, day.Add(15*time.Hour), "104", "0001"))
	ix.Add(loan(3, "L3", 8, day, "001", "0002"))
	ix.Seal()

	if ix.Len() != 3 {
		t.Fatalf("Len=%d; want 3", ix.Len())
	}

	t.Run("miss yields one null-loan record", func(t *testing.T) {
		got := ix.Probe(irpf("I9", i64(99), day.Add(8*time.Hour)))
		if len(got) != 1 {
			t.Fatalf("records=%d; want 1", len(got))
		}
		j := got[0]
		if j.LoanID != nil || j.BankCode != nil || j.BranchNumber != nil || j.CreatedAtLoan != nil {
			t.Fatalf("loan side not nil: %+v", j)
		}
		if j.CreatedAtIrpf != "2023-05-10" {
			t.Fatalf("CreatedAtIrpf=%q", j.CreatedAtIrpf)
		}
	})

	t.Run("fan-out preserves loan input order", func(t *testing.T) {
		got := ix.Probe(irpf("I1", i64(7), day.Add(8*time.Hour)))
		if len(got) != 2 {
			t.Fatalf("records=%d; want 2", len(got))
		}
		if *got[0].LoanID != "L1" || *got[1].LoanID != "L2" {
			t.Fatalf("order: %q, %q; want L1, L2", *got[0].LoanID, *got[1].LoanID)
		}
		if got[0].LoanSeq != 1 || got[1].LoanSeq != 2 {
			t.Fatalf("LoanSeq: %d, %d; want 1, 2", got[0].LoanSeq, got[1].LoanSeq)
		}
		if *got[0].BankCode != "033" || *got[0].BranchNumber != "0050" {
			t.Fatalf("loan attrs: %+v", got[0])
		}
		// Every fanned-out record carries the same IRPF side.
		for _, j := range got {
			if j.Irpf.IrpfID != "I1" {
				t.Fatalf("Irpf side diverged: %+v", j)
			}
			if j.CreatedAtLoan == nil || *j.CreatedAtLoan != "2023-05-10" {
				t.Fatalf("CreatedAtLoan=%v", j.CreatedAtLoan)
			}
		}
	})

	t.Run("date is the key, not the timestamp", func(t *testing.T) {
		// Same person, next calendar day: no match.
		got := ix.Probe(irpf("I2", i64(7), day.AddDate(0, 0, 1)))
		if len(got) != 1 || got[0].LoanID != nil {
			t.Fatalf("next-day probe matched: %+v", got)
		}
	})

	t.Run("nil person never matches", func(t *testing.T) {
		got := ix.Probe(irpf("I3", nil, day))
		if len(got) != 1 || got[0].LoanID != nil {
			t.Fatalf("nil-person probe matched: %+v", got)
		}
	})
}

/*
TestSealRestoresSourceOrder verifies a sealed index fans out by source
position even when loans were added shuffled, the way concurrent
extraction delivers them.
*/
func TestSealRestoresSourceOrder(t *testing.T) {
	day := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)

	ix := NewIndex()
	ix.Add(loan(3, "L3", 7, day, "104", "0001"))
	ix.Add(loan(1, "L1", 7, day, "033", "0050"))
	ix.Add(loan(2, "L2", 7, day, "001", "0002"))
	ix.Seal()

	got := ix.Probe(irpf("I1", i64(7), day))
	if len(got) != 3 {
		t.Fatalf("records=%d; want 3", len(got))
	}
	for i, want := range []string{"L1", "L2", "L3"} {
		if *got[i].LoanID != want {
			t.Fatalf("fan-out[%d]=%q; want %q", i, *got[i].LoanID, want)
		}
		if got[i].LoanSeq != int64(i+1) {
			t.Fatalf("fan-out[%d].LoanSeq=%d; want %d", i, got[i].LoanSeq, i+1)
		}
	}
}

/*
TestAddSkipsUnjoinable verifies loans that can never match (nil
person_id, zero timestamp) are not indexed.
*/
func TestAddSkipsUnjoinable(t *testing.T) {
	day := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)

	ix := NewIndex()
	ix.Add(model.LoanRecord{LoanID: "L1", PersonID: nil, CreatedAt: day})
	ix.Add(model.LoanRecord{LoanID: "L2", PersonID: i64(7)}) // zero CreatedAt

	if ix.Len() != 0 {
		t.Fatalf("Len=%d; want 0", ix.Len())
	}
}
