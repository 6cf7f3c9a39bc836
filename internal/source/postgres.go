package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"irpfetl/pkg/records"
)

// postgresQuery streams the result set of one SELECT as records keyed
// by the query's column names. Values keep their driver-native types
// (timestamps arrive as time.Time, jsonb as map[string]any), which the
// extractors accept directly.
type postgresQuery struct {
	dsn   string
	query string
}

func (s *postgresQuery) Read(ctx context.Context, out chan<- records.Record, onErr func(int, error)) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("source: connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, s.query)
	if err != nil {
		return fmt.Errorf("source: query: %w", err)
	}
	defer rows.Close()

	cols := make([]string, len(rows.FieldDescriptions()))
	for i, fd := range rows.FieldDescriptions() {
		cols[i] = fd.Name
	}

	n := 0
	for rows.Next() {
		n++
		vals, err := rows.Values()
		if err != nil {
			onErr(n, err)
			continue
		}

		rec := make(records.Record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("source: rows: %w", err)
	}
	return nil
}
