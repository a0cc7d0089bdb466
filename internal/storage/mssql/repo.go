// Package mssql implements storage.Repository for Microsoft SQL Server.
//
// This package does NOT blank-import a SQL Server driver. The application must
// register the "sqlserver" driver with database/sql elsewhere (see
// internal/storage/all).
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sparkify/internal/storage"
)

func init() {
	storage.Register("mssql", New)
}

// Repo implements storage.Repository for SQL Server.
//
// Idempotent dimension loads use INSERT ... SELECT ... WHERE NOT EXISTS;
// latest-wins loads use UPDATE followed by a guarded INSERT.
type Repo struct {
	db dbConn
}

// New constructs a Repo using database/sql and the "sqlserver" driver, and
// validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// One writer per run; a small pool is enough.
	raw.SetMaxOpenConns(4)
	raw.SetMaxIdleConns(4)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTables creates tables and indexes behind existence guards, so it is
// safe to run on every invocation.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if !t.AutoCreateTable {
			continue
		}

		stmts, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is one file's SQL Server transaction.
type Tx struct {
	tx txConn
}

func (t *Tx) InsertOrIgnore(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	stmt, err := buildInsertNotExistsSQL(table, columns, keyColumns)
	if err != nil {
		return err
	}
	return t.exec(ctx, table, columns, values, stmt)
}

func (t *Tx) InsertOrUpdate(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	stmt, err := buildUpsertSQL(table, columns, keyColumns)
	if err != nil {
		return err
	}
	return t.exec(ctx, table, columns, values, stmt)
}

func (t *Tx) InsertAppend(ctx context.Context, table string, columns []string, values []any) error {
	return t.exec(ctx, table, columns, values, buildInsertSQL(table, columns))
}

func (t *Tx) exec(ctx context.Context, table string, columns []string, values []any, stmt string) error {
	if len(columns) != len(values) {
		return fmt.Errorf("mssql: insert %s: %d columns, %d values", table, len(columns), len(values))
	}
	if _, err := t.tx.ExecContext(ctx, stmt, values...); err != nil {
		return fmt.Errorf("mssql: insert %s: %w", table, err)
	}
	return nil
}

func (t *Tx) LookupSong(ctx context.Context, q storage.SongQuery) (storage.SongMatch, bool, error) {
	stmt, args := buildLookupSongSQL(q)

	var m storage.SongMatch
	err := t.tx.QueryRowContext(ctx, stmt, args...).Scan(&m.SongID, &m.ArtistID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SongMatch{}, false, nil
	}
	if err != nil {
		return storage.SongMatch{}, false, fmt.Errorf("mssql: lookup song: %w", err)
	}
	return m, true, nil
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

// Rollback is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	Commit() error
	Rollback() error
}

// rowScanner is a narrow adapter over *sql.Row.Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

// sqlTx wraps *sql.Tx to implement txConn.
type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.tx.QueryRowContext(ctx, query, args...)
}

func (s *sqlTx) Commit() error { return s.tx.Commit() }

func (s *sqlTx) Rollback() error { return s.tx.Rollback() }

var (
	_ dbConn             = (*sqlDB)(nil)
	_ txConn             = (*sqlTx)(nil)
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
