// Package sqlite implements storage.Repository on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"sparkify/internal/storage"
)

// DefaultDSN is a private in-memory database. It lives as long as the Repo.
const DefaultDSN = ":memory:"

// Repo implements storage.Repository for SQLite.
//
// The pool is pinned to one connection: SQLite serializes writers anyway, and
// an in-memory database exists only on the connection that created it.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTables creates tables and indexes; startup stays idempotent.
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
				return fmt.Errorf("create table %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

type Tx struct {
	tx *sql.Tx
}

func (t *Tx) InsertOrIgnore(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	return t.exec(ctx, table, columns, values, buildInsertSQL(table, columns, keyColumns, nil))
}

func (t *Tx) InsertOrUpdate(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	update := storage.NonKeyColumns(keyColumns, columns)
	return t.exec(ctx, table, columns, values, buildInsertSQL(table, columns, keyColumns, update))
}

func (t *Tx) InsertAppend(ctx context.Context, table string, columns []string, values []any) error {
	return t.exec(ctx, table, columns, values, buildInsertSQL(table, columns, nil, nil))
}

func (t *Tx) exec(ctx context.Context, table string, columns []string, values []any, stmt string) error {
	if len(columns) != len(values) {
		return fmt.Errorf("sqlite: insert %s: %d columns, %d values", table, len(columns), len(values))
	}
	if _, err := t.tx.ExecContext(ctx, stmt, sqliteArgs(values)...); err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", table, err)
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
		return storage.SongMatch{}, false, fmt.Errorf("sqlite: lookup song: %w", err)
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

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
