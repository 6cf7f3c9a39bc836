// Package source abstracts where raw history rows come from. The
// pipeline only ever sees a RowReader; whether rows originate in an
// NDJSON export, a semicolon-delimited file, or a live Postgres query is
// a configuration detail.
package source

import (
	"context"
	"fmt"

	"irpfetl/internal/config"
	"irpfetl/pkg/records"
)

// RowReader streams the raw rows of one source table into out. The
// implementation closes nothing it did not open and never closes out;
// the pipeline owns channel lifecycle. Row-level read problems go to
// onErr (1-based row number) and do not stop the stream; only I/O and
// connectivity failures return an error.
type RowReader interface {
	Read(ctx context.Context, out chan<- records.Record, onErr func(row int, err error)) error
}

// New constructs the RowReader described by an input config block.
func New(in config.Input) (RowReader, error) {
	switch in.Kind {
	case "file":
		switch in.File.Format {
		case "", "ndjson":
			return &ndjsonFile{path: in.File.Path}, nil
		case "csv":
			return &csvFile{path: in.File.Path, opts: in.Options}, nil
		default:
			return nil, fmt.Errorf("source: unknown file format %q", in.File.Format)
		}
	case "postgres":
		return &postgresQuery{dsn: in.DB.DSN, query: in.DB.Query}, nil
	default:
		return nil, fmt.Errorf("source: unknown input kind %q", in.Kind)
	}
}
