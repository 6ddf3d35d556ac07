package db

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// setupTestDB opens a fresh database with the tables of board created.
func setupTestDB(t *testing.T, board string) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if board != "" {
		if _, err := database.EnsureBoard(context.Background(), board, schema.DefaultTemplate()); err != nil {
			t.Fatalf("EnsureBoard() failed: %v", err)
		}
	}
	return database
}

func mediaValues(hash, media string, total int64) []any {
	return []any{hash, media, nil, nil, total, int64(0)}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	database, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer database.Close()

	if database.Path() != path {
		t.Errorf("Path() = %q, want %q", database.Path(), path)
	}

	var mode string
	if err := database.RawDB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestEnsureBoard(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "")

	created, err := database.EnsureBoard(ctx, "g", schema.DefaultTemplate())
	if err != nil {
		t.Fatalf("EnsureBoard() failed: %v", err)
	}
	if !created {
		t.Error("EnsureBoard() created = false on empty database")
	}

	created, err = database.EnsureBoard(ctx, "g", schema.DefaultTemplate())
	if err != nil {
		t.Fatalf("second EnsureBoard() failed: %v", err)
	}
	if created {
		t.Error("second EnsureBoard() created = true")
	}

	for _, name := range []string{"g", "g_images", "g_threads"} {
		ok, err := database.TableExists(ctx, name)
		if err != nil {
			t.Fatalf("TableExists(%s) failed: %v", name, err)
		}
		if !ok {
			t.Errorf("table %s missing", name)
		}
	}
}

func TestCheckNaturalKeys(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "g")

	if err := database.CheckNaturalKeys(ctx, "g"); err != nil {
		t.Errorf("CheckNaturalKeys() failed: %v", err)
	}

	err := database.CheckNaturalKeys(ctx, "mu")
	if !errors.Is(err, ErrNoSuchTable) {
		t.Errorf("CheckNaturalKeys(mu) error = %v, want ErrNoSuchTable", err)
	}
}

func TestCheckNaturalKeys_MissingUniqueIndex(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "")

	// Threads without UNIQUE(thread_num).
	template := strings.Replace(schema.DefaultTemplate(), "UNIQUE (thread_num)", "CHECK (thread_num >= 0)", 1)
	if _, err := database.EnsureBoard(ctx, "x", template); err != nil {
		t.Fatalf("EnsureBoard() failed: %v", err)
	}

	err := database.CheckNaturalKeys(ctx, "x")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("CheckNaturalKeys() error = %v, want *ConflictError", err)
	}
	if ce.Table != "x_threads" {
		t.Errorf("ConflictError.Table = %q, want x_threads", ce.Table)
	}
}

func TestUpsertSingle_ReturnsExistingID(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "g")

	tx, err := database.Begin(ctx, "g")
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	first, err := tx.UpsertSingle(ctx, schema.Media, mediaValues("abc123", "f.jpg", 5))
	if err != nil {
		t.Fatalf("UpsertSingle() failed: %v", err)
	}
	other, err := tx.UpsertSingle(ctx, schema.Media, mediaValues("def456", "g.jpg", 1))
	if err != nil {
		t.Fatalf("UpsertSingle() failed: %v", err)
	}
	again, err := tx.UpsertSingle(ctx, schema.Media, mediaValues("abc123", "f2.jpg", 6))
	if err != nil {
		t.Fatalf("UpsertSingle() failed: %v", err)
	}

	if again != first {
		t.Errorf("re-upsert returned id %d, want %d", again, first)
	}
	if other == first {
		t.Errorf("distinct hashes share id %d", first)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	var media string
	var total int64
	err = database.RawDB().QueryRow(`SELECT media, total FROM g_images WHERE media_hash = 'abc123'`).Scan(&media, &total)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if media != "f2.jpg" || total != 6 {
		t.Errorf("row = (%s, %d), want (f2.jpg, 6)", media, total)
	}

	n, err := database.CountRows(ctx, "g_images")
	if err != nil {
		t.Fatalf("CountRows() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountRows() = %d, want 2", n)
	}
}

func TestUpsertSingle_WrongArity(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "g")

	tx, err := database.Begin(ctx, "g")
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.UpsertSingle(ctx, schema.Media, []any{"abc"}); err == nil {
		t.Error("UpsertSingle() with one value succeeded")
	}
	if _, err := tx.UpsertSingle(ctx, schema.Threads, make([]any, 11)); err == nil {
		t.Error("UpsertSingle() on table without surrogate succeeded")
	}
}

func threadValues(num, nreplies int64) []any {
	return []any{num, int64(1), int64(2), nil, nil, nil, nil, nreplies, int64(0), int64(0), int64(0)}
}

func TestUpsertBatch_Converges(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "g")

	for _, replies := range []int64{1, 7} {
		tx, err := database.Begin(ctx, "g")
		if err != nil {
			t.Fatalf("Begin() failed: %v", err)
		}
		n, err := tx.UpsertBatch(ctx, schema.Threads, [][]any{threadValues(100, replies), threadValues(200, replies)})
		if err != nil {
			tx.Rollback()
			t.Fatalf("UpsertBatch() failed: %v", err)
		}
		if n != 2 {
			t.Errorf("UpsertBatch() = %d, want 2", n)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
	}

	rows, err := database.RawDB().Query(`SELECT thread_num, nreplies FROM g_threads ORDER BY thread_num`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var got [][2]int64
	for rows.Next() {
		var r [2]int64
		if err := rows.Scan(&r[0], &r[1]); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, r)
	}
	if diff := cmp.Diff([][2]int64{{100, 7}, {200, 7}}, got); diff != "" {
		t.Errorf("threads mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertBatch_ConstraintViolation(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "g")

	tx, err := database.Begin(ctx, "g")
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	bad := threadValues(100, 0)
	bad[1] = nil // time_op is NOT NULL

	_, err = tx.UpsertBatch(ctx, schema.Threads, [][]any{bad})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("UpsertBatch() error = %v, want *ConflictError", err)
	}
	if ce.Table != "g_threads" {
		t.Errorf("ConflictError.Table = %q, want g_threads", ce.Table)
	}
}

func TestRollback_DiscardsWrites(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "g")

	tx, err := database.Begin(ctx, "g")
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if _, err := tx.UpsertSingle(ctx, schema.Media, mediaValues("abc123", "f.jpg", 1)); err != nil {
		t.Fatalf("UpsertSingle() failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	// A second rollback is harmless.
	if err := tx.Rollback(); err != nil {
		t.Errorf("second Rollback() failed: %v", err)
	}

	stats, err := database.Stats(ctx, "g")
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if diff := cmp.Diff(&BoardStats{Board: "g"}, stats); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestBoards(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t, "mu")
	if _, err := database.EnsureBoard(ctx, "g", schema.DefaultTemplate()); err != nil {
		t.Fatalf("EnsureBoard() failed: %v", err)
	}
	if _, err := database.RawDB().Exec(`CREATE TABLE ck (x INTEGER)`); err != nil {
		t.Fatalf("create stray table: %v", err)
	}

	boards, err := database.Boards(ctx)
	if err != nil {
		t.Fatalf("Boards() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"g", "mu"}, boards); diff != "" {
		t.Errorf("Boards() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertSQL(t *testing.T) {
	got := UpsertSQL("g_images", schema.Media, true)
	want := `INSERT INTO "g_images" ("media_hash", "media", "preview_op", "preview_reply", "total", "banned") ` +
		`VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT("media_hash") DO UPDATE SET ` +
		`"media" = excluded."media", "preview_op" = excluded."preview_op", "preview_reply" = excluded."preview_reply", ` +
		`"total" = excluded."total", "banned" = excluded."banned" RETURNING "media_id"`
	if got != want {
		t.Errorf("UpsertSQL() =\n%s\nwant\n%s", got, want)
	}
}
