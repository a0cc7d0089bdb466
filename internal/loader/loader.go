// Package loader writes star rows through a storage transaction using each
// table's declared conflict policy, and resolves playback events to song and
// artist keys.
package loader

import (
	"context"
	"fmt"

	"sparkify/internal/star"
	"sparkify/internal/storage"
)

// Loader applies rows inside one file's transaction.
//
// It is not safe for concurrent use; a Loader lives as long as its Tx.
type Loader struct {
	tx     storage.Tx
	tables map[string]storage.TableSpec

	applied map[string]int
}

// New binds a Loader to tx. tables must declare every table rows will name.
func New(tx storage.Tx, tables []storage.TableSpec) *Loader {
	byName := make(map[string]storage.TableSpec, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	return &Loader{tx: tx, tables: byName, applied: map[string]int{}}
}

// Apply writes one row:
//   - dimension + do_nothing: InsertOrIgnore on the conflict columns.
//   - dimension + do_update: InsertOrUpdate, overwriting every non-key column.
//   - fact: InsertAppend.
//
// Store failures are returned as *storage.StoreWriteError.
func (l *Loader) Apply(ctx context.Context, row star.Row) error {
	name := row.Table()
	spec, ok := l.tables[name]
	if !ok {
		return fmt.Errorf("loader: table %q is not declared", name)
	}

	var err error
	switch spec.Load.Kind {
	case storage.LoadFact:
		err = l.tx.InsertAppend(ctx, name, row.Columns(), row.Values())
	case storage.LoadDimension:
		keys := spec.ConflictColumns()
		if len(keys) == 0 {
			return fmt.Errorf("loader: dimension %q has no conflict columns", name)
		}
		action := storage.ActionDoNothing
		if spec.Load.Conflict != nil && spec.Load.Conflict.Action != "" {
			action = spec.Load.Conflict.Action
		}
		switch action {
		case storage.ActionDoNothing:
			err = l.tx.InsertOrIgnore(ctx, name, keys, row.Columns(), row.Values())
		case storage.ActionDoUpdate:
			err = l.tx.InsertOrUpdate(ctx, name, keys, row.Columns(), row.Values())
		default:
			return fmt.Errorf("loader: dimension %q: unsupported conflict action %q", name, action)
		}
	default:
		return fmt.Errorf("loader: table %q: unsupported load kind %q", name, spec.Load.Kind)
	}

	if err != nil {
		return &storage.StoreWriteError{Table: name, Err: err}
	}
	l.applied[name]++
	return nil
}

// Applied returns the number of rows written per table so far.
func (l *Loader) Applied() map[string]int {
	out := make(map[string]int, len(l.applied))
	for k, v := range l.applied {
		out[k] = v
	}
	return out
}
