package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"irpfetl/internal/model"
	"irpfetl/internal/storage"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "out.db")
	repo, err := NewRepository(context.Background(), storage.Config{
		Kind: "sqlite", DSN: dsn, Table: "irpf_latest",
	})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

/*
TestRoundTrip writes output-shaped rows through EnsureTable + CopyFrom
and reads them back:
  - nil cells surface as SQL NULLs,
  - time.Time stores as RFC 3339 text,
  - the insert count matches.
*/
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	columns := model.OutputColumns()

	if err := repo.EnsureTable(ctx, columns); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent on rerun.
	if err := repo.EnsureTable(ctx, columns); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	ts := time.Date(2023, 5, 10, 8, 30, 0, 0, time.UTC)
	rows := [][]any{
		{int64(7), "L1", "I2", ts, "033", "0050", int64(3), `{"personId":7,"rev":3}`},
		{int64(9), nil, "I3", ts, nil, nil, int64(2), `{"personId":9,"rev":2}`},
	}

	n, err := repo.CopyFrom(ctx, columns, rows)
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted=%d; want 2", n)
	}

	var (
		personID  int64
		loanID    *string
		timeStamp string
		rev       *int64
	)
	err = repo.db.QueryRowContext(ctx,
		"SELECT person_id, loan_id, time_stamp, rev FROM irpf_latest WHERE irpf_id = ?", "I3",
	).Scan(&personID, &loanID, &timeStamp, &rev)
	if err != nil {
		t.Fatalf("query back: %v", err)
	}
	if personID != 9 {
		t.Fatalf("person_id=%d; want 9", personID)
	}
	if loanID != nil {
		t.Fatalf("loan_id=%v; want NULL", *loanID)
	}
	if timeStamp != ts.Format(time.RFC3339Nano) {
		t.Fatalf("time_stamp=%q", timeStamp)
	}
	if rev == nil || *rev != 2 {
		t.Fatalf("rev=%v; want 2", rev)
	}
}

func TestCopyFromArgChecks(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	columns := model.OutputColumns()

	if err := repo.EnsureTable(ctx, columns); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	if _, err := repo.CopyFrom(ctx, nil, [][]any{{1}}); err == nil {
		t.Fatal("empty columns should error")
	}
	if n, err := repo.CopyFrom(ctx, columns, nil); err != nil || n != 0 {
		t.Fatalf("empty rows: n=%d err=%v", n, err)
	}
	if _, err := repo.CopyFrom(ctx, columns, [][]any{{1, 2}}); err == nil {
		t.Fatal("short row should error")
	}
}

/*
TestCopyFromRollsBackWholeBatch verifies a mid-batch failure undoes the
rows already executed and reports zero inserted, so run statistics never
count rows the rollback removed.
*/
func TestCopyFromRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	columns := model.OutputColumns()

	if err := repo.EnsureTable(ctx, columns); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	ts := time.Date(2023, 5, 10, 8, 30, 0, 0, time.UTC)
	rows := [][]any{
		{int64(7), "L1", "I2", ts, "033", "0050", int64(3), `{"personId":7,"rev":3}`},
		{int64(9), "L2"}, // short row, fails after the first insert
	}

	n, err := repo.CopyFrom(ctx, columns, rows)
	if err == nil {
		t.Fatal("short second row should error")
	}
	if n != 0 {
		t.Fatalf("inserted=%d after rollback; want 0", n)
	}

	var count int
	if err := repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM irpf_latest").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rows persisted after rollback: %d", count)
	}
}

func TestNewRepositoryValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRepository(ctx, storage.Config{DSN: "", Table: "t"}); err == nil {
		t.Fatal("empty DSN should error")
	}
	if _, err := NewRepository(ctx, storage.Config{DSN: "file:x.db", Table: " "}); err == nil {
		t.Fatal("empty table should error")
	}
}

func TestFactoryRegistered(t *testing.T) {
	found := false
	for _, k := range storage.ListKinds() {
		if k == "sqlite" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sqlite not registered: %v", storage.ListKinds())
	}
}
