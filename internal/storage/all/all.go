// Package all links every storage backend into the binary and registers the
// SQL Server driver with database/sql.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "sparkify/internal/storage/memory"
	_ "sparkify/internal/storage/mssql"
	_ "sparkify/internal/storage/postgres"
	_ "sparkify/internal/storage/sqlite"
)
