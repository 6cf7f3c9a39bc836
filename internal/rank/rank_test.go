package rank

import (
	"testing"
	"time"

	"irpfetl/internal/model"
)

func i64(v int64) *int64   { return &v }
func str(s string) *string { return &s }

func joined(irpfID string, person *int64, day string, rev *int64, loanID *string) model.JoinedRecord {
	return model.JoinedRecord{
		Irpf: model.IrpfRecord{
			IrpfID:   irpfID,
			PersonID: person,
			Rev:      rev,
		},
		LoanID:        loanID,
		CreatedAtIrpf: day,
	}
}

// fanned is one record of a revision fanned out over several loans.
func fanned(irpfID string, rev int64, seq int64, loanID string) model.JoinedRecord {
	j := joined(irpfID, i64(7), "2023-05-10", i64(rev), str(loanID))
	j.LoanSeq = seq
	return j
}

/*
TestWinnerSelection verifies the rank-1 rule per (person, day) group:
  - the largest rev wins regardless of arrival order,
  - a null rev loses to any non-null rev; an all-null group still has
    a winner,
  - equal revs break by smallest irpf_id,
  - equal irpf_ids (one revision fanned out over several loans) keep
    the loan earliest in the loan source, whatever order the records
    arrive in.
*/
func TestWinnerSelection(t *testing.T) {
	cases := []struct {
		name string
		in   []model.JoinedRecord
		want string // winning IrpfID+LoanID rendering
	}{
		{
			"largest rev wins, later arrival",
			[]model.JoinedRecord{
				joined("I1", i64(7), "2023-05-10", i64(1), nil),
				joined("I2", i64(7), "2023-05-10", i64(3), nil),
			},
			"I2/",
		},
		{
			"largest rev wins, earlier arrival",
			[]model.JoinedRecord{
				joined("I2", i64(7), "2023-05-10", i64(3), nil),
				joined("I1", i64(7), "2023-05-10", i64(1), nil),
			},
			"I2/",
		},
		{
			"null rev loses to non-null",
			[]model.JoinedRecord{
				joined("I1", i64(7), "2023-05-10", nil, nil),
				joined("I2", i64(7), "2023-05-10", i64(0), nil),
			},
			"I2/",
		},
		{
			"all-null revs break by smallest id",
			[]model.JoinedRecord{
				joined("I9", i64(7), "2023-05-10", nil, nil),
				joined("I2", i64(7), "2023-05-10", nil, nil),
			},
			"I2/",
		},
		{
			"equal rev breaks by smallest id",
			[]model.JoinedRecord{
				joined("I5", i64(7), "2023-05-10", i64(2), nil),
				joined("I3", i64(7), "2023-05-10", i64(2), nil),
			},
			"I3/",
		},
		{
			"same revision fanned out keeps first loan",
			[]model.JoinedRecord{
				fanned("I1", 2, 1, "L1"),
				fanned("I1", 2, 2, "L2"),
			},
			"I1/L1",
		},
		{
			"same revision fanned out keeps first loan, later arrival",
			[]model.JoinedRecord{
				fanned("I1", 2, 2, "L2"),
				fanned("I1", 2, 1, "L1"),
			},
			"I1/L1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := NewAccumulator()
			for _, j := range tc.in {
				acc.Add(j)
			}
			ws := acc.Winners()
			if len(ws) != 1 {
				t.Fatalf("winners=%d; want 1", len(ws))
			}
			got := ws[0].IrpfID + "/"
			if ws[0].LoanID != nil {
				got += *ws[0].LoanID
			}
			if got != tc.want {
				t.Fatalf("winner=%q; want %q", got, tc.want)
			}
		})
	}
}

/*
TestGrouping verifies partition boundaries:
  - one output row per distinct (person, day), never more,
  - the same person on two days forms two groups,
  - nil persons all share one group per day, separate from any
    concrete person.
*/
func TestGrouping(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(joined("I1", i64(7), "2023-05-10", i64(1), nil))
	acc.Add(joined("I2", i64(7), "2023-05-10", i64(2), nil))
	acc.Add(joined("I3", i64(7), "2023-05-11", i64(1), nil))
	acc.Add(joined("I4", i64(8), "2023-05-10", i64(1), nil))
	acc.Add(joined("I5", nil, "2023-05-10", i64(1), nil))
	acc.Add(joined("I6", nil, "2023-05-10", i64(2), nil))

	if acc.Groups() != 4 {
		t.Fatalf("Groups=%d; want 4", acc.Groups())
	}
	ws := acc.Winners()
	if len(ws) != 4 {
		t.Fatalf("winners=%d; want 4", len(ws))
	}

	// Deterministic order: day asc, then concrete persons asc, nulls last.
	order := []string{"I2", "I4", "I6", "I3"}
	for i, want := range order {
		if ws[i].IrpfID != want {
			t.Fatalf("winners[%d]=%q; want %q (all: %+v)", i, ws[i].IrpfID, want, ws)
		}
	}
	if ws[2].PersonID != nil {
		t.Fatalf("null-person winner has person %v", ws[2].PersonID)
	}
}

/*
TestProjection verifies the winner projects every output column from
its own joined row, loan attributes included.
*/
func TestProjection(t *testing.T) {
	at := time.Date(2023, 5, 10, 8, 30, 0, 0, time.UTC)

	j := model.JoinedRecord{
		Irpf: model.IrpfRecord{
			IrpfID:    "I2",
			PersonID:  i64(7),
			CreatedAt: at,
			Rev:       i64(3),
			Value:     `{"personId":7,"rev":3}`,
		},
		LoanID:        str("L1"),
		BankCode:      str("033"),
		BranchNumber:  str("0050"),
		CreatedAtIrpf: "2023-05-10",
	}

	acc := NewAccumulator()
	acc.Add(j)
	w := acc.Winners()[0]

	if *w.PersonID != 7 || *w.LoanID != "L1" || w.IrpfID != "I2" {
		t.Fatalf("identity columns: %+v", w)
	}
	if !w.TimeStamp.Equal(at) {
		t.Fatalf("TimeStamp=%v; want %v", w.TimeStamp, at)
	}
	if *w.BankCode != "033" || *w.BranchNumber != "0050" {
		t.Fatalf("bank columns: %+v", w)
	}
	if *w.Rev != 3 || w.Value != `{"personId":7,"rev":3}` {
		t.Fatalf("payload columns: %+v", w)
	}
}
