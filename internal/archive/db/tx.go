package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// Tx is one board import's transaction.
//
// Column lists always come from the schema.Table passed in, and value lists
// must be in that table's WriteColumns order.
type Tx struct {
	tx    *sql.Tx
	board string
	stmts map[string]*sql.Stmt
}

// Begin starts a write transaction for board.
func (db *DB) Begin(ctx context.Context, board string) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{
		tx:    tx,
		board: board,
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	tx.closeStmts()
	if err := tx.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is safe to call after Commit.
func (tx *Tx) Rollback() error {
	tx.closeStmts()
	if err := tx.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// UpsertSingle inserts values into t, or overwrites every non-key column of
// the row sharing its natural key, and returns the row's surrogate key.
//
// It is one INSERT ... ON CONFLICT DO UPDATE ... RETURNING statement, so
// the returned key is the key of the row as stored.
func (tx *Tx) UpsertSingle(ctx context.Context, t *schema.Table, values []any) (int64, error) {
	if t.Surrogate == "" {
		return 0, fmt.Errorf("table %s has no surrogate key to return", t.Name(tx.board))
	}
	cols := t.WriteColumns()
	if len(values) != len(cols) {
		return 0, fmt.Errorf("upsert %s: got %d values for %d columns", t.Name(tx.board), len(values), len(cols))
	}

	stmt, err := tx.prepare(ctx, t, true)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := stmt.QueryRowContext(ctx, values...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert into %s: %w", t.Name(tx.board), classify(t.Name(tx.board), err))
	}
	return id, nil
}

// UpsertBatch applies the same conflict policy as UpsertSingle to every row
// through one prepared statement. It returns the number of rows written.
func (tx *Tx) UpsertBatch(ctx context.Context, t *schema.Table, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := t.WriteColumns()

	stmt, err := tx.prepare(ctx, t, false)
	if err != nil {
		return 0, err
	}

	for i, values := range rows {
		if len(values) != len(cols) {
			return i, fmt.Errorf("upsert %s row %d: got %d values for %d columns", t.Name(tx.board), i, len(values), len(cols))
		}
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return i, fmt.Errorf("failed to upsert into %s: %w", t.Name(tx.board), classify(t.Name(tx.board), err))
		}
	}
	return len(rows), nil
}

// prepare returns the cached upsert statement for t.
func (tx *Tx) prepare(ctx context.Context, t *schema.Table, returning bool) (*sql.Stmt, error) {
	query := UpsertSQL(t.Name(tx.board), t, returning)
	if stmt, ok := tx.stmts[query]; ok {
		return stmt, nil
	}

	stmt, err := tx.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert for %s: %w", t.Name(tx.board), classify(t.Name(tx.board), err))
	}
	tx.stmts[query] = stmt
	return stmt, nil
}

func (tx *Tx) closeStmts() {
	for q, stmt := range tx.stmts {
		_ = stmt.Close()
		delete(tx.stmts, q)
	}
}

// UpsertSQL builds the upsert statement for t stored under name:
//
//	INSERT INTO "name" (c1, c2, ...) VALUES (?, ?, ...)
//	ON CONFLICT("key") DO UPDATE SET c2 = excluded.c2, ...
//	[RETURNING "surrogate"]
func UpsertSQL(name string, t *schema.Table, returning bool) string {
	cols := t.WriteColumns()

	quoted := make([]string, len(cols))
	var sets []string
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		if c == t.NaturalKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", quoted[i], quoted[i]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	fmt.Fprintf(&b, " ON CONFLICT(%s) DO UPDATE SET %s", quoteIdent(t.NaturalKey), strings.Join(sets, ", "))
	if returning {
		fmt.Fprintf(&b, " RETURNING %s", quoteIdent(t.Surrogate))
	}
	return b.String()
}
