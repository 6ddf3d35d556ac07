// Package db provides the destination SQLite database for board imports.
//
// The database runs embedded through github.com/ncruces/go-sqlite3 with WAL
// journaling so status queries can read while an import writes.
//
// Layout:
//   - One set of three tables per board: <board>, <board>_images,
//     <board>_threads (see package schema).
//   - Each table carries a unique constraint on its natural key. The
//     upserts in this package rely on it and CheckNaturalKeys verifies it
//     before an import starts.
//
// Writes happen through Tx. A board import owns exactly one Tx and either
// commits all of it or none of it.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// ErrNoSuchTable is returned when a board table is missing.
var ErrNoSuchTable = errors.New("no such table")

// ConflictError reports a write the upsert clause could not absorb: a
// constraint violation on something other than the natural key, or a table
// without the unique index the upsert targets.
type ConflictError struct {
	Table string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("storage conflict on %s: %v", e.Table, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Options configures Open.
type Options struct {
	// BusyTimeout is how long a writer waits for the database lock.
	BusyTimeout time.Duration

	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

// DB wraps the destination database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// Transactions begin IMMEDIATE so concurrent board imports queue on the
// write lock instead of failing on upgrade. The caller MUST call Close().
func Open(path string, opts Options) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultOptions().MaxOpenConns
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		path, opts.BusyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	// journal_mode is persistent, once is enough
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// TableExists reports whether a table named name exists.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return count > 0, nil
}

// EnsureBoard creates the tables of board from template unless the posts
// table already exists. It reports whether anything was created.
func (db *DB) EnsureBoard(ctx context.Context, board, template string) (bool, error) {
	exists, err := db.TableExists(ctx, schema.Posts.Name(board))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema.Render(template, board) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("failed to create tables for %s: %w", board, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// CheckNaturalKeys verifies that every table of board exists and carries a
// unique constraint on exactly its natural key column.
func (db *DB) CheckNaturalKeys(ctx context.Context, board string) error {
	for _, t := range schema.Tables {
		name := t.Name(board)

		exists, err := db.TableExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNoSuchTable, name)
		}

		ok, err := db.hasUniqueKey(ctx, name, t.NaturalKey)
		if err != nil {
			return err
		}
		if !ok {
			return &ConflictError{
				Table: name,
				Err:   fmt.Errorf("no unique index on %s", t.NaturalKey),
			}
		}
	}
	return nil
}

// hasUniqueKey reports whether table has a single-column unique index or
// primary key on column.
func (db *DB) hasUniqueKey(ctx context.Context, table, column string) (bool, error) {
	indexes, err := db.stringColumn(ctx,
		`SELECT name FROM pragma_index_list(?) WHERE "unique" = 1`, table)
	if err != nil {
		return false, err
	}

	for _, idx := range indexes {
		cols, err := db.stringColumn(ctx, `SELECT name FROM pragma_index_info(?)`, idx)
		if err != nil {
			return false, err
		}
		if len(cols) == 1 && cols[0] == column {
			return true, nil
		}
	}

	// INTEGER PRIMARY KEY aliases the rowid and has no index entry.
	pk, err := db.stringColumn(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk > 0`, table)
	if err != nil {
		return false, err
	}
	return len(pk) == 1 && pk[0] == column, nil
}

func (db *DB) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", query, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountRows returns the number of rows in table.
func (db *DB) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// BoardStats holds row counts for the three tables of a board.
type BoardStats struct {
	Board   string
	Posts   int64
	Media   int64
	Threads int64
}

// Stats returns row counts for board.
func (db *DB) Stats(ctx context.Context, board string) (*BoardStats, error) {
	stats := &BoardStats{Board: board}
	targets := []struct {
		table *schema.Table
		dst   *int64
	}{
		{schema.Posts, &stats.Posts},
		{schema.Media, &stats.Media},
		{schema.Threads, &stats.Threads},
	}
	for _, tgt := range targets {
		n, err := db.CountRows(ctx, tgt.table.Name(board))
		if err != nil {
			return nil, err
		}
		*tgt.dst = n
	}
	return stats, nil
}

// Boards returns the boards whose three tables all exist, sorted by name.
func (db *DB) Boards(ctx context.Context) ([]string, error) {
	names, err := db.stringColumn(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	var boards []string
	for _, n := range names {
		if strings.Contains(n, "_") || strings.HasPrefix(n, "sqlite") {
			continue
		}
		if set[schema.Media.Name(n)] && set[schema.Threads.Name(n)] {
			boards = append(boards, n)
		}
	}
	return boards, nil
}

// classify wraps constraint violations in a ConflictError.
func classify(table string, err error) error {
	if errors.Is(err, sqlite3.CONSTRAINT) {
		return &ConflictError{Table: table, Err: err}
	}
	return err
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
