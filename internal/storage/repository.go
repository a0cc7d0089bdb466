package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic star-schema store.
//
// Each backend implements the write semantics in its own idiomatic way
// (ON CONFLICT on Postgres and SQLite, NOT EXISTS on SQL Server).
type Repository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// EnsureTables creates tables, constraints and indexes that do not exist.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// Begin starts the unit of work for one input file. Nothing written
	// through the returned Tx is visible to other units until Commit.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one file's unit of work.
//
// Reads through a Tx observe the Tx's own earlier writes.
type Tx interface {
	// InsertOrIgnore inserts a row; a conflict on keyColumns is a no-op.
	InsertOrIgnore(ctx context.Context, table string, keyColumns, columns []string, values []any) error

	// InsertOrUpdate inserts a row; on conflict on keyColumns every other
	// column is overwritten with the new values.
	InsertOrUpdate(ctx context.Context, table string, keyColumns, columns []string, values []any) error

	// InsertAppend inserts a row unconditionally.
	InsertAppend(ctx context.Context, table string, columns []string, values []any) error

	// LookupSong returns the first song (ordered by song id) whose title and
	// artist name match exactly and whose duration lies within tolerance.
	// found is false when nothing matches.
	LookupSong(ctx context.Context, q SongQuery) (m SongMatch, found bool, err error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SongQuery holds the denormalized attributes of a playback event.
type SongQuery struct {
	Title     string
	Artist    string
	Duration  float64
	Tolerance float64
}

// SongMatch is the resolved pair of dimension keys.
type SongMatch struct {
	SongID   string
	ArtistID string
}

// ---- factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

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

// Open constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
