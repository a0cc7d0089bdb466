// The table declarations live here so the loader and every backend package can
// import them without circular deps.
package storage

import "strings"

// Tables read by Tx.LookupSong.
const (
	SongsTable   = "songs"
	ArtistsTable = "artists"
)

// Load kinds.
const (
	LoadDimension = "dimension"
	LoadFact      = "fact"
)

// Conflict actions for dimension tables.
const (
	ActionDoNothing = "do_nothing"
	ActionDoUpdate  = "do_update"
)

// TableSpec declares one star-schema table; star.Tables builds them in code.
type TableSpec struct {
	Name            string
	AutoCreateTable bool
	PrimaryKey      *PrimaryKeySpec
	Columns         []ColumnSpec
	Constraints     []ConstraintSpec
	Indexes         []IndexSpec
	Load            LoadSpec
}

// PrimaryKeySpec declares a store-generated surrogate key (serial / identity).
// Natural keys are declared with a "primary_key" constraint instead.
type PrimaryKeySpec struct {
	Name string
	Type string // e.g. serial / int identity, etc
}

type ColumnSpec struct {
	Name       string
	Type       string // logical: text, longtext, int, bigint, double, timestamp
	References string
	Nullable   *bool
}

type ConstraintSpec struct {
	Kind    string // "primary_key" | "unique"
	Columns []string
}

type IndexSpec struct {
	Name    string
	Columns []string
}

type LoadSpec struct {
	Kind     string // "dimension" | "fact"
	Conflict *ConflictSpec
}

type ConflictSpec struct {
	TargetColumns []string
	Action        string // "do_nothing" | "do_update"
}

// IsNullable reports the column's nullability; columns default to NOT NULL.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable != nil && *c.Nullable
}

// NaturalKey returns the columns of the table's primary_key constraint, if any.
func (t TableSpec) NaturalKey() []string {
	for _, c := range t.Constraints {
		if c.Kind == "primary_key" {
			return c.Columns
		}
	}
	return nil
}

// ConflictColumns returns the conflict target for dimension loads, falling
// back to the natural key.
func (t TableSpec) ConflictColumns() []string {
	if t.Load.Conflict != nil && len(t.Load.Conflict.TargetColumns) > 0 {
		return t.Load.Conflict.TargetColumns
	}
	return t.NaturalKey()
}

// SplitReference splits a "table(column)" foreign key reference.
func SplitReference(ref string) (table, column string, ok bool) {
	ref = strings.TrimSpace(ref)
	open := strings.IndexByte(ref, '(')
	if open <= 0 || !strings.HasSuffix(ref, ")") {
		return "", "", false
	}
	table = strings.TrimSpace(ref[:open])
	column = strings.TrimSpace(ref[open+1 : len(ref)-1])
	if table == "" || column == "" {
		return "", "", false
	}
	return table, column, true
}

// NonKeyColumns returns columns minus keyColumns, preserving order. These are
// the columns an upsert overwrites.
func NonKeyColumns(keyColumns, columns []string) []string {
	keys := make(map[string]bool, len(keyColumns))
	for _, k := range keyColumns {
		keys[k] = true
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !keys[c] {
			out = append(out, c)
		}
	}
	return out
}
