// Package memory implements storage.Repository on in-process maps. It backs
// tests and dry runs; nothing survives Close.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sparkify/internal/storage"
)

func init() {
	storage.Register("memory", New)
}

// Row is one stored row keyed by column name.
type Row map[string]any

type table struct {
	spec storage.TableSpec

	keyed map[string]Row // by composite natural key
	order []string       // keyed insertion order
	rows  []Row          // append-only tables
	next  int64          // next surrogate key
}

func (t *table) clone() *table {
	c := &table{
		spec:  t.spec,
		keyed: make(map[string]Row, len(t.keyed)),
		order: append([]string(nil), t.order...),
		rows:  append([]Row(nil), t.rows...),
		next:  t.next,
	}
	// Rows are never mutated in place, so sharing them is safe.
	for k, v := range t.keyed {
		c.keyed[k] = v
	}
	return c
}

// Repo is the committed state. A commit replaces the whole state, so
// concurrent transactions are last-commit-wins; the pipeline runs one at a time.
type Repo struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	return NewRepo(), nil
}

// NewRepo returns an empty repository.
func NewRepo() *Repo {
	return &Repo{tables: map[string]*table{}}
}

func (r *Repo) Close() {}

func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, spec := range tables {
		if spec.Name == "" {
			return fmt.Errorf("memory: table name is empty")
		}
		if _, ok := r.tables[spec.Name]; ok {
			continue
		}
		r.tables[spec.Name] = &table{spec: spec, keyed: map[string]Row{}, next: 1}
	}
	return nil
}

// Begin snapshots the committed state; the Tx works on its own copy.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	work := make(map[string]*table, len(r.tables))
	for name, t := range r.tables {
		work[name] = t.clone()
	}
	return &Tx{repo: r, tables: work}, nil
}

// Rows returns the committed rows of a table: keyed tables in first-insert
// order, append tables in insert order.
func (r *Repo) Rows(name string) []Row {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[name]
	if !ok {
		return nil
	}
	if len(t.rows) > 0 {
		return append([]Row(nil), t.rows...)
	}
	out := make([]Row, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.keyed[k])
	}
	return out
}

// Count returns the number of committed rows in a table.
func (r *Repo) Count(name string) int {
	return len(r.Rows(name))
}

// Tx is a private working copy of every table.
type Tx struct {
	repo   *Repo
	tables map[string]*table
	done   bool
}

func (tx *Tx) table(name string) (*table, error) {
	if tx.done {
		return nil, fmt.Errorf("memory: transaction already finished")
	}
	t, ok := tx.tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: no such table %q", name)
	}
	return t, nil
}

func (tx *Tx) InsertOrIgnore(ctx context.Context, name string, keyColumns, columns []string, values []any) error {
	return tx.upsert(ctx, name, keyColumns, columns, values, false)
}

func (tx *Tx) InsertOrUpdate(ctx context.Context, name string, keyColumns, columns []string, values []any) error {
	return tx.upsert(ctx, name, keyColumns, columns, values, true)
}

func (tx *Tx) upsert(ctx context.Context, name string, keyColumns, columns []string, values []any, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	row, err := buildRow(t.spec, columns, values)
	if err != nil {
		return err
	}
	if len(keyColumns) == 0 {
		return fmt.Errorf("memory: %s: no key columns", name)
	}

	keyVals := make([]any, len(keyColumns))
	for i, k := range keyColumns {
		v, ok := row[k]
		if !ok || v == nil {
			return fmt.Errorf("memory: %s: key column %q is null", name, k)
		}
		keyVals[i] = v
	}
	key := storage.CompositeKey(keyVals)

	if _, exists := t.keyed[key]; exists {
		if overwrite {
			t.keyed[key] = row
		}
		return nil
	}
	t.keyed[key] = row
	t.order = append(t.order, key)
	return nil
}

func (tx *Tx) InsertAppend(ctx context.Context, name string, columns []string, values []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	row, err := buildRow(t.spec, columns, values)
	if err != nil {
		return err
	}
	if pk := t.spec.PrimaryKey; pk != nil {
		row[pk.Name] = t.next
		t.next++
	}
	t.rows = append(t.rows, row)
	return nil
}

// LookupSong scans songs joined to artists; the dimension tables are small
// enough in tests and dry runs that no index is kept.
func (tx *Tx) LookupSong(ctx context.Context, q storage.SongQuery) (storage.SongMatch, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.SongMatch{}, false, err
	}
	songs, err := tx.table(storage.SongsTable)
	if err != nil {
		return storage.SongMatch{}, false, err
	}
	artists, err := tx.table(storage.ArtistsTable)
	if err != nil {
		return storage.SongMatch{}, false, err
	}

	var matches []storage.SongMatch
	for _, s := range songs.keyed {
		if s["title"] != q.Title {
			continue
		}
		d, ok := s["duration"].(float64)
		if !ok || d < q.Duration-q.Tolerance || d > q.Duration+q.Tolerance {
			continue
		}
		artistID := storage.NormalizeKey(s["artist_id"])
		a, ok := artists.keyed[storage.CompositeKey([]any{artistID})]
		if !ok || a["name"] != q.Artist {
			continue
		}
		matches = append(matches, storage.SongMatch{SongID: storage.NormalizeKey(s["song_id"]), ArtistID: artistID})
	}
	if len(matches) == 0 {
		return storage.SongMatch{}, false, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].SongID < matches[j].SongID })
	return matches[0], true, nil
}

func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return fmt.Errorf("memory: transaction already finished")
	}
	tx.repo.mu.Lock()
	tx.repo.tables = tx.tables
	tx.repo.mu.Unlock()
	tx.done = true
	return nil
}

func (tx *Tx) Rollback(ctx context.Context) error {
	tx.done = true
	tx.tables = nil
	return nil
}

// buildRow checks the values against the table declaration: every value must
// name a declared column and non-nullable columns must be non-nil.
func buildRow(spec storage.TableSpec, columns []string, values []any) (Row, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("memory: insert %s: %d columns, %d values", spec.Name, len(columns), len(values))
	}
	declared := make(map[string]storage.ColumnSpec, len(spec.Columns))
	for _, c := range spec.Columns {
		declared[c.Name] = c
	}

	row := make(Row, len(columns)+1)
	for i, c := range columns {
		col, ok := declared[c]
		if !ok {
			return nil, fmt.Errorf("memory: insert %s: unknown column %q", spec.Name, c)
		}
		if values[i] == nil && !col.IsNullable() {
			return nil, fmt.Errorf("memory: insert %s: column %q is NOT NULL", spec.Name, c)
		}
		row[c] = values[i]
	}
	for _, c := range spec.Columns {
		if _, ok := row[c.Name]; !ok && !c.IsNullable() {
			return nil, fmt.Errorf("memory: insert %s: column %q is NOT NULL", spec.Name, c.Name)
		}
	}
	return row, nil
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
