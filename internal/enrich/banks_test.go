package enrich

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"irpfetl/internal/config"
	"irpfetl/internal/model"
)

func writeDirectory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "banks.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write directory: %v", err)
	}
	return path
}

/*
TestLoadBankDirectory verifies the directory load path:
  - the upstream export headers ("Codigo_Banco"/"BankName") work
    through canonicalisation without a header map,
  - rows without a code are skipped,
  - unknown codes resolve to the "###" sentinel, nil codes to ok=false.
*/
func TestLoadBankDirectory(t *testing.T) {
	path := writeDirectory(t,
		"Codigo_Banco;BankName\n"+
			"033;Banco Santander\n"+
			"104;Caixa Economica Federal\n"+
			";Sem Codigo\n")

	dir, err := LoadBankDirectory(path, config.Options{})
	if err != nil {
		t.Fatalf("LoadBankDirectory: %v", err)
	}
	if dir.Len() != 2 {
		t.Fatalf("Len=%d; want 2", dir.Len())
	}

	code := "033"
	if name, ok := dir.Name(&code); !ok || name != "Banco Santander" {
		t.Fatalf("Name(033)=(%q,%v)", name, ok)
	}
	unknown := "999"
	if name, ok := dir.Name(&unknown); !ok || name != UnknownBank {
		t.Fatalf("Name(999)=(%q,%v); want sentinel", name, ok)
	}
	if _, ok := dir.Name(nil); ok {
		t.Fatal("nil code should report ok=false")
	}
}

func TestLoadBankDirectorySnakeHeaders(t *testing.T) {
	path := writeDirectory(t, "bank_code,bank\n001,Banco do Brasil\n")

	dir, err := LoadBankDirectory(path, config.Options{"delimiter": ","})
	if err != nil {
		t.Fatalf("LoadBankDirectory: %v", err)
	}
	code := "001"
	if name, ok := dir.Name(&code); !ok || name != "Banco do Brasil" {
		t.Fatalf("Name(001)=(%q,%v)", name, ok)
	}
}

/*
TestApply verifies row annotation: matched codes get the directory
name, unmatched codes get the sentinel, and rows without a bank code
(join misses) keep a null bank name.
*/
func TestApply(t *testing.T) {
	path := writeDirectory(t, "Codigo_Banco;BankName\n033;Banco Santander\n")
	dir, err := LoadBankDirectory(path, config.Options{})
	if err != nil {
		t.Fatalf("LoadBankDirectory: %v", err)
	}

	known, unknown := "033", "999"
	rows := []model.OutputRecord{
		{IrpfID: "I1", TimeStamp: time.Now(), BankCode: &known},
		{IrpfID: "I2", TimeStamp: time.Now(), BankCode: &unknown},
		{IrpfID: "I3", TimeStamp: time.Now()}, // join miss
	}

	dir.Apply(rows)

	if rows[0].Bank == nil || *rows[0].Bank != "Banco Santander" {
		t.Fatalf("rows[0].Bank=%v", rows[0].Bank)
	}
	if rows[1].Bank == nil || *rows[1].Bank != UnknownBank {
		t.Fatalf("rows[1].Bank=%v", rows[1].Bank)
	}
	if rows[2].Bank != nil {
		t.Fatalf("rows[2].Bank=%v; want nil", rows[2].Bank)
	}
}
