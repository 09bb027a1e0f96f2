// Package storage persists extracted carousel items.
//
// Backends register themselves under a kind ("postgres", "sqlite", "mssql")
// via init; the pipeline selects one by configuration. All backends share one
// logical table shape and the same idempotency contract: re-storing the same
// page must not duplicate rows.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// DefaultTable is the destination table used when config leaves it empty.
const DefaultTable = "carousel_items"

// Config selects and parameterizes a storage backend.
//
// Edge cases:
//   - Kind must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
//   - An empty Table means DefaultTable.
type Config struct {
	Kind       string
	DSN        string
	Table      string
	AutoCreate bool
}

// TableName returns the configured destination table or DefaultTable.
func (c Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Repository is the backend-agnostic persistence surface for carousel items.
//
// The interface is intentionally minimal: the pipeline only ever creates the
// schema once and appends item batches. Each backend implements the dedupe
// semantics its engine offers (Postgres ON CONFLICT, SQLite OR IGNORE, MSSQL
// NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Treat as "call once" at shutdown.
	Close()

	// EnsureSchema creates the destination table when the config enables
	// auto-creation. It is idempotent; without auto-creation it is a no-op.
	EnsureSchema(ctx context.Context) error

	// InsertItems appends a batch of rows and reports how many were newly
	// stored. Rows whose (source, category, item_key) already exist are
	// skipped, not errors.
	InsertItems(ctx context.Context, rows []ItemRow) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind.
//
// Call Register from an init() function in a backend package; the kind string
// becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for error messages and help
// output. The order is unspecified.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
