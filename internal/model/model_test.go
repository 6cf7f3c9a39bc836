package model

import (
	"reflect"
	"testing"
	"time"
)

func TestDayAndSafra(t *testing.T) {
	ts := time.Date(2023, 5, 10, 23, 59, 59, 0, time.UTC)
	if got := Day(ts); got != "2023-05-10" {
		t.Fatalf("Day=%q", got)
	}
	if got := Safra(ts); got != "202305" {
		t.Fatalf("Safra=%q", got)
	}
}

/*
TestRow verifies the positional projection stays aligned with
OutputColumns and that nil pointers surface as SQL NULLs.
*/
func TestRow(t *testing.T) {
	ts := time.Date(2023, 5, 10, 9, 45, 0, 0, time.UTC)
	person, loan := int64(7), "L1"
	bank, branch := "033", "0050"
	rev := int64(3)

	full := OutputRecord{
		PersonID: &person, LoanID: &loan, IrpfID: "I2", TimeStamp: ts,
		BankCode: &bank, BranchNumber: &branch, Rev: &rev, Value: "{}",
	}
	want := []any{int64(7), "L1", "I2", ts, "033", "0050", int64(3), "{}"}
	if got := full.Row(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v; want %v", got, want)
	}
	if len(want) != len(OutputColumns()) {
		t.Fatalf("Row width %d != columns %d", len(want), len(OutputColumns()))
	}

	sparse := OutputRecord{IrpfID: "I4", TimeStamp: ts, Value: "junk"}
	got := sparse.Row()
	for _, i := range []int{0, 1, 4, 5, 6} {
		if got[i] != nil {
			t.Fatalf("cell %d=%v; want nil", i, got[i])
		}
	}
}
