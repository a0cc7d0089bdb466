package sqlite

import (
	"fmt"
	"strings"

	"sparkify/internal/storage"
)

// columnType maps a logical column type onto SQLite type affinity.
func columnType(logical string) string {
	switch strings.ToLower(strings.TrimSpace(logical)) {
	case "text", "longtext", "timestamp":
		return "TEXT"
	case "int", "bigint":
		return "INTEGER"
	case "double":
		return "REAL"
	default:
		return logical
	}
}

// buildCreateSQL returns CREATE TABLE followed by one CREATE INDEX per index.
func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}

	base, err := buildCreateTableSQL(t)
	if err != nil {
		return nil, err
	}
	stmts := []string{base}

	for _, ix := range t.Indexes {
		if strings.TrimSpace(ix.Name) == "" || len(ix.Columns) == 0 {
			return nil, fmt.Errorf("%s: index requires name and columns", t.Name)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
			sqlIdent(ix.Name), sqlIdent(t.Name), joinIdentList(ix.Columns)))
	}
	return stmts, nil
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	var parts []string

	if t.PrimaryKey != nil {
		pkType := strings.TrimSpace(strings.ToLower(t.PrimaryKey.Type))

		// "INTEGER PRIMARY KEY" is special in sqlite: it becomes the rowid and auto-generates values.
		switch pkType {
		case "serial", "bigserial", "identity":
			parts = append(parts, fmt.Sprintf(`%s INTEGER PRIMARY KEY AUTOINCREMENT`, sqlIdent(t.PrimaryKey.Name)))
		default:
			parts = append(parts, fmt.Sprintf(`%s %s PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name), t.PrimaryKey.Type))
		}
	}

	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return "", fmt.Errorf("%s: column name/type must be set", t.Name)
		}
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), columnType(c.Type))
		if !c.IsNullable() {
			col += " NOT NULL"
		}
		// SQLite supports REFERENCES, but enforcement depends on PRAGMA foreign_keys=ON.
		if c.References != "" {
			table, ref, ok := storage.SplitReference(c.References)
			if !ok {
				return "", fmt.Errorf("%s: column %s: invalid reference %q", t.Name, c.Name, c.References)
			}
			col += fmt.Sprintf(" REFERENCES %s (%s)", sqlIdent(table), sqlIdent(ref))
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%s: no columns", t.Name)
	}

	for _, con := range t.Constraints {
		if len(con.Columns) == 0 {
			return "", fmt.Errorf("%s: %s constraint has no columns", t.Name, con.Kind)
		}
		switch con.Kind {
		case "primary_key":
			if t.PrimaryKey != nil {
				return "", fmt.Errorf("%s: primary_key constraint conflicts with primary_key column", t.Name)
			}
			parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", joinIdentList(con.Columns)))
		case "unique":
			parts = append(parts, fmt.Sprintf("UNIQUE (%s)", joinIdentList(con.Columns)))
		default:
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", sqlIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func joinIdentList(columns []string) string {
	q := make([]string, len(columns))
	for i, c := range columns {
		q[i] = sqlIdent(c)
	}
	return strings.Join(q, ", ")
}
