package postgres

import (
	"fmt"
	"strings"

	"sparkify/internal/storage"
)

// columnType maps a logical column type to Postgres. Unknown types are used
// verbatim so callers can still declare native types.
func columnType(logical string) string {
	switch strings.ToLower(strings.TrimSpace(logical)) {
	case "text", "longtext":
		return "TEXT"
	case "int":
		return "INTEGER"
	case "bigint":
		return "BIGINT"
	case "double":
		return "DOUBLE PRECISION"
	case "timestamp":
		return "TIMESTAMP"
	default:
		return logical
	}
}

// buildCreateSQL builds the DDL statements for one table, in execution order:
// optional CREATE SCHEMA, CREATE TABLE, then one CREATE INDEX per index.
func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}

	var stmts []string
	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		stmts = append(stmts, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema)))
	}

	defs, err := buildColumnDefs(t)
	if err != nil {
		return nil, err
	}
	constraints, err := buildConstraints(t)
	if err != nil {
		return nil, err
	}
	defs = append(defs, constraints...)

	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`,
		pgTableIdent(t.Name), strings.Join(defs, ", ")))

	for _, ix := range t.Indexes {
		if strings.TrimSpace(ix.Name) == "" || len(ix.Columns) == 0 {
			return nil, fmt.Errorf("table %s: index requires name and columns", t.Name)
		}
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s);`,
			pgIdent(ix.Name), pgTableIdent(t.Name), joinIdents(ix.Columns)))
	}
	return stmts, nil
}

// buildColumnDefs returns the "<col> <type> ..." definitions.
//
// A PrimaryKeySpec becomes the first column; it is not expected in t.Columns.
func buildColumnDefs(t storage.TableSpec) ([]string, error) {
	cols := make([]string, 0, len(t.Columns)+1)

	if t.PrimaryKey != nil {
		pk := strings.TrimSpace(t.PrimaryKey.Name)
		pkType := strings.ToLower(strings.TrimSpace(t.PrimaryKey.Type))
		if pk == "" || pkType == "" {
			return nil, fmt.Errorf("table %s: primary_key.name and primary_key.type are required", t.Name)
		}
		switch pkType {
		case "serial", "identity":
			cols = append(cols, fmt.Sprintf(`%s BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`, pgIdent(pk)))
		default:
			cols = append(cols, fmt.Sprintf(`%s %s PRIMARY KEY`, pgIdent(pk), t.PrimaryKey.Type))
		}
	}

	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		cols = append(cols, def)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s: no columns", t.Name)
	}
	return cols, nil
}

// buildColumnDef renders a single column definition. Columns are NOT NULL
// unless declared nullable.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	typ := strings.TrimSpace(c.Type)
	if name == "" || typ == "" {
		return "", fmt.Errorf("column name/type must be set")
	}

	var b strings.Builder
	b.WriteString(pgIdent(name))
	b.WriteString(" ")
	b.WriteString(columnType(typ))

	if !c.IsNullable() {
		b.WriteString(" NOT NULL")
	}

	if ref := strings.TrimSpace(c.References); ref != "" {
		table, col, ok := storage.SplitReference(ref)
		if !ok {
			return "", fmt.Errorf("column %s: invalid reference %q", name, ref)
		}
		b.WriteString(" REFERENCES ")
		b.WriteString(pgTableIdent(table))
		b.WriteString(" (")
		b.WriteString(pgIdent(col))
		b.WriteString(")")
	}

	return b.String(), nil
}

// buildConstraints generates table-level PRIMARY KEY and UNIQUE constraints.
func buildConstraints(t storage.TableSpec) ([]string, error) {
	out := make([]string, 0, len(t.Constraints))
	for _, c := range t.Constraints {
		if len(c.Columns) == 0 {
			return nil, fmt.Errorf("table %s: %s constraint requires columns", t.Name, c.Kind)
		}
		switch strings.ToLower(strings.TrimSpace(c.Kind)) {
		case "primary_key":
			if t.PrimaryKey != nil {
				return nil, fmt.Errorf("table %s: primary_key constraint conflicts with primary_key column", t.Name)
			}
			out = append(out, "PRIMARY KEY ("+joinIdents(c.Columns)+")")
		case "unique":
			out = append(out, "UNIQUE ("+joinIdents(c.Columns)+")")
		default:
			return nil, fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, c.Kind)
		}
	}
	return out, nil
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "public.songs" => ("public", "songs")
//   - "songs"        => ("", "songs")
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// pgIdent double-quotes an identifier, escaping embedded quotes.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgTableIdent quotes each part of a possibly schema-qualified table name.
func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

func joinIdents(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = pgIdent(strings.TrimSpace(c))
	}
	return strings.Join(q, ", ")
}
