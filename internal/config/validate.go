// Static validation / linting of Pipeline values. Checks are performed
// over a decoded Pipeline and reported as a list of issues; callers
// decide whether warnings block execution.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that need not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path
// into the config (e.g. "storage.kind", "loans.file.path").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation of a Pipeline. It does
// not mutate the pipeline.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and identifies runs",
		})
	}

	issues = append(issues, validateInput("irpf", p.Irpf)...)
	issues = append(issues, validateInput("loans", p.Loans)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateInput(path string, in Input) []Issue {
	var issues []Issue

	switch in.Kind {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(in.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".file.path",
				Message:  "file input requires a path",
			})
		}
		switch in.File.Format {
		case "", "ndjson", "csv":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".file.format",
				Message:  fmt.Sprintf("unknown format %q (want ndjson or csv)", in.File.Format),
			})
		}
	case "postgres":
		if strings.TrimSpace(in.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".db.dsn",
				Message:  "postgres input requires a DSN",
			})
		}
		if strings.TrimSpace(in.DB.Query) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".db.query",
				Message:  "postgres input requires a query",
			})
		}
	default:
		// Unknown kinds are warnings for forward compatibility.
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown input kind %q", in.Kind),
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	case "postgres", "sqlite":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q (built-in: postgres, sqlite)", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage requires a DSN",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage requires a destination table",
		})
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.ExtractWorkers < 0 || r.Shards < 0 || r.BatchSize < 0 || r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime",
			Message:  "runtime values must not be negative (zero means default)",
		})
	}
	if r.Shards > 1024 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.shards",
			Message:  fmt.Sprintf("%d shards is excessive for a group-by of this shape", r.Shards),
		})
	}

	return issues
}
