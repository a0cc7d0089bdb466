// Package postgres implements storage.Repository on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sparkify/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository for Postgres.
//
// Idempotent loads use INSERT ... ON CONFLICT; every file runs inside one pgx
// transaction.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTables creates the tables and indexes that do not exist yet.
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
			if _, err := r.pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("postgres: create %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is one file's pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) InsertOrIgnore(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	return t.exec(ctx, table, columns, values, conflictClause{Target: keyColumns})
}

func (t *Tx) InsertOrUpdate(ctx context.Context, table string, keyColumns, columns []string, values []any) error {
	return t.exec(ctx, table, columns, values, conflictClause{
		Target: keyColumns,
		Update: storage.NonKeyColumns(keyColumns, columns),
	})
}

func (t *Tx) InsertAppend(ctx context.Context, table string, columns []string, values []any) error {
	return t.exec(ctx, table, columns, values, conflictClause{})
}

func (t *Tx) exec(ctx context.Context, table string, columns []string, values []any, conflict conflictClause) error {
	if len(columns) != len(values) {
		return fmt.Errorf("postgres: insert %s: %d columns, %d values", table, len(columns), len(values))
	}
	sql, args := buildInsertSQL(table, columns, [][]any{values}, conflict)
	if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: insert %s: %w", table, err)
	}
	return nil
}

func (t *Tx) LookupSong(ctx context.Context, q storage.SongQuery) (storage.SongMatch, bool, error) {
	sql, args := buildLookupSongSQL(q)

	var m storage.SongMatch
	err := t.tx.QueryRow(ctx, sql, args...).Scan(&m.SongID, &m.ArtistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.SongMatch{}, false, nil
	}
	if err != nil {
		return storage.SongMatch{}, false, fmt.Errorf("postgres: lookup song: %w", err)
	}
	return m, true, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
