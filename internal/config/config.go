// Package config defines the JSON-serializable pipeline configuration
// and a static validator for it.
//
// A pipeline file names the two input tables (IRPF history and personal
// loans), the output storage, optional reference enrichment, and the
// runtime knobs. Field names in Go mirror the JSON structure used in
// configs/pipelines/*.json.
//
// Example (trimmed):
//
//	{
//	  "job":   "irpf_latest_revision",
//	  "irpf":  { "kind": "file", "file": { "path": "irpf.ndjson", "format": "ndjson" } },
//	  "loans": { "kind": "file", "file": { "path": "loans.csv", "format": "csv" },
//	             "options": { "delimiter": ";" } },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "out.db", "table": "irpf_latest" } }
//	}
package config

import "encoding/json"

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels the run for metrics grouping and logs.
	Job string `json:"job"`

	// Irpf configures the IRPF history input (anchor side of the join).
	Irpf Input `json:"irpf"`

	// Loans configures the personal-loan input (enrichment side).
	Loans Input `json:"loans"`

	// Enrich configures optional reference-data enrichment.
	Enrich Enrich `json:"enrich"`

	// Storage describes where output rows are written.
	Storage Storage `json:"storage"`

	// Runtime controls concurrency, sharding, and batching.
	Runtime RuntimeConfig `json:"runtime"`
}

// Input identifies one source table.
type Input struct {
	// Kind selects the source implementation: "file" or "postgres".
	Kind string `json:"kind"`

	// File carries options for the "file" kind.
	File InputFile `json:"file"`

	// DB carries options for the "postgres" kind.
	DB InputDB `json:"db"`

	// Options is a free-form bag interpreted by the reader. For CSV
	// inputs, typical keys: delimiter (string), header_map (object),
	// has_header (bool).
	Options Options `json:"options"`
}

// InputFile holds configuration for the "file" input kind.
type InputFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`

	// Format selects the parser: "ndjson" (default) or "csv".
	Format string `json:"format"`
}

// InputDB holds configuration for the "postgres" input kind.
type InputDB struct {
	// DSN is the pgx connection string.
	DSN string `json:"dsn"`

	// Query is the SELECT producing the raw rows. Column names must
	// match the raw schema the extractor expects.
	Query string `json:"query"`
}

// Enrich configures reference-data enrichment of the output.
type Enrich struct {
	// Banks is a path to a delimited file mapping bank_code to bank
	// name. Empty disables the enrichment.
	Banks string `json:"banks"`

	// Options is the parser bag for the banks file (delimiter etc.).
	Options Options `json:"options"`
}

// Storage selects the sink used to persist output rows.
type Storage struct {
	// Kind selects the storage backend: "postgres" or "sqlite".
	Kind string `json:"kind"`

	// DB configures the selected backend.
	DB DBConfig `json:"db"`
}

// DBConfig configures a database sink.
type DBConfig struct {
	// DSN is the connection string for the backend driver.
	DSN string `json:"dsn"`

	// Table is the destination table name (schema-qualified for
	// Postgres, e.g. "public.irpf_latest").
	Table string `json:"table"`

	// AutoCreateTable creates the destination table when missing.
	AutoCreateTable bool `json:"auto_create_table"`
}

// RuntimeConfig controls concurrency, sharding, and batching. Zero
// values fall back to environment overrides, then defaults.
type RuntimeConfig struct {
	ExtractWorkers int `json:"extract_workers"`
	Shards         int `json:"shards"`
	BatchSize      int `json:"batch_size"`
	ChannelBuffer  int `json:"channel_buffer"`
}

// Options is a free-form configuration bag with typed accessors. It
// performs minimal coercion and returns the provided default when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Used
// for single-character settings such as a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an
// object with string values; non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null options object to a non-nil,
// empty map so call sites never nil-check.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
