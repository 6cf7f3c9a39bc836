package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"irpfetl/internal/config"
	csvparser "irpfetl/internal/parser/csv"
	jsonparser "irpfetl/internal/parser/json"
	"irpfetl/pkg/records"
)

// ndjsonFile streams newline-delimited JSON objects from a local file.
type ndjsonFile struct {
	path string
}

func (s *ndjsonFile) Read(ctx context.Context, out chan<- records.Record, onErr func(int, error)) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("source: open %s: %w", s.path, err)
	}
	defer f.Close()

	dec := jsonparser.NewDecoder(f)
	for {
		rec, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A decode error in the middle of the stream is not
			// recoverable for NDJSON; report and stop.
			onErr(dec.Line()+1, err)
			return nil
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// csvFile streams a delimited file with a header row.
type csvFile struct {
	path string
	opts config.Options
}

func (s *csvFile) Read(ctx context.Context, out chan<- records.Record, onErr func(int, error)) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("source: open %s: %w", s.path, err)
	}
	defer f.Close()

	r, err := csvparser.NewReader(f, csvparser.Options{
		Comma:     s.opts.Rune("delimiter", ';'),
		HasHeader: s.opts.Bool("has_header", true),
		HeaderMap: s.opts.StringMap("header_map"),
		TrimSpace: true,
	})
	if err != nil {
		return err
	}

	for {
		rec, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Malformed row: report, keep reading.
			onErr(r.Line()+1, err)
			continue
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
