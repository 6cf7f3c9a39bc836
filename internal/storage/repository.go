// Package storage contains the storage-agnostic contracts the pipeline
// writes through, plus a registry so backends can self-register and the
// rest of the program stays free of driver imports.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the minimal sink contract used by the pipeline.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns order and returns
	// the number of rows inserted. Implementations should cancel
	// promptly when ctx is done.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// EnsureTable creates the destination table when missing, using
	// the given column names with the pipeline's fixed output types.
	EnsureTable(ctx context.Context, columns []string) error

	// Close releases the underlying connection resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // registered backend name, e.g. "postgres", "sqlite"
	DSN   string
	Table string
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a storage kind.
// Called from backend packages' init functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens the Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered backend names.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
