package mssql

import (
	"fmt"
	"strings"

	"sparkify/internal/storage"
)

// columnType maps a logical column type to SQL Server. Text is bounded so it
// can take part in keys and indexes; longtext is NVARCHAR(MAX).
func columnType(logical string) string {
	switch strings.ToLower(strings.TrimSpace(logical)) {
	case "text":
		return "NVARCHAR(400)"
	case "longtext":
		return "NVARCHAR(MAX)"
	case "int":
		return "INT"
	case "bigint":
		return "BIGINT"
	case "double":
		return "FLOAT"
	case "timestamp":
		return "DATETIME2(3)"
	default:
		return logical
	}
}

// buildCreateSQL returns the guarded CREATE TABLE and CREATE INDEX batches.
func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("mssql: table name is empty")
	}

	defs, err := buildCreateTableDefs(t)
	if err != nil {
		return nil, err
	}
	stmts := []string{wrapCreateIfMissing(t.Name, defs)}

	for _, ix := range t.Indexes {
		if strings.TrimSpace(ix.Name) == "" || len(ix.Columns) == 0 {
			return nil, fmt.Errorf("mssql: %s: index requires name and columns", t.Name)
		}
		stmts = append(stmts, fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s')) CREATE INDEX %s ON %s (%s);",
			escapeLiteral(ix.Name), escapeLiteral(t.Name), mssqlIdent(ix.Name), mssqlTableIdent(t.Name), joinIdents(ix.Columns),
		))
	}
	return stmts, nil
}

// buildCreateTableDefs produces the "(...)" inner content for CREATE TABLE.
func buildCreateTableDefs(t storage.TableSpec) (string, error) {
	var parts []string

	if t.PrimaryKey != nil {
		pkDef, err := mssqlPrimaryKeyDef(*t.PrimaryKey)
		if err != nil {
			return "", err
		}
		parts = append(parts, pkDef)
	}

	for _, c := range t.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, def)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("mssql: %s has no columns", t.Name)
	}

	for _, con := range t.Constraints {
		if len(con.Columns) == 0 {
			return "", fmt.Errorf("%s %s constraint has no columns", t.Name, con.Kind)
		}
		switch strings.ToLower(con.Kind) {
		case "primary_key":
			if t.PrimaryKey != nil {
				return "", fmt.Errorf("%s: primary_key constraint conflicts with primary_key column", t.Name)
			}
			parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", joinIdents(con.Columns)))
		case "unique":
			parts = append(parts, fmt.Sprintf("UNIQUE (%s)", joinIdents(con.Columns)))
		default:
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
	}

	return strings.Join(parts, ", "), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
//
// This keeps EnsureTables idempotent without requiring IF NOT EXISTS syntax.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		escapeLiteral(tableName),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// mssqlPrimaryKeyDef returns a column definition for an identity primary key.
//
// Supported types (case-insensitive):
//   - "serial", "identity" -> BIGINT IDENTITY(1,1) PRIMARY KEY
//   - otherwise uses pk.Type verbatim with PRIMARY KEY.
func mssqlPrimaryKeyDef(pk storage.PrimaryKeySpec) (string, error) {
	if strings.TrimSpace(pk.Name) == "" {
		return "", fmt.Errorf("mssql: primary key name is empty")
	}
	typ := strings.ToLower(strings.TrimSpace(pk.Type))
	switch typ {
	case "serial", "bigserial", "identity":
		return fmt.Sprintf("%s BIGINT IDENTITY(1,1) PRIMARY KEY", mssqlIdent(pk.Name)), nil
	default:
		return fmt.Sprintf("%s %s PRIMARY KEY", mssqlIdent(pk.Name), pk.Type), nil
	}
}

// mssqlColumnDef builds a SQL Server column definition from storage.ColumnSpec.
func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	if strings.TrimSpace(c.Type) == "" {
		return "", fmt.Errorf("mssql: column %s type is empty", c.Name)
	}

	var b strings.Builder
	b.WriteString(mssqlIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(columnType(c.Type))

	if c.IsNullable() {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if ref := strings.TrimSpace(c.References); ref != "" {
		table, col, ok := storage.SplitReference(ref)
		if !ok {
			return "", fmt.Errorf("mssql: column %s: invalid reference %q", c.Name, ref)
		}
		b.WriteString(" REFERENCES ")
		b.WriteString(mssqlTableIdent(table))
		b.WriteString(" (")
		b.WriteString(mssqlIdent(col))
		b.WriteString(")")
	}

	return b.String(), nil
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.songs" -> [dbo].[songs]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func joinIdents(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = mssqlIdent(strings.TrimSpace(c))
	}
	return strings.Join(q, ", ")
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
