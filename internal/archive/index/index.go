// Package index builds in-memory lookup tables over a board's side tables.
//
// An Index maps a natural key, in its original textual form, to the typed
// write projection of the row (see schema.Table.WriteColumns). It is built
// once per board import from a full pass over the side table and dropped
// when the import ends. Memory is O(rows in the side table); the detail
// table is never indexed.
package index

import (
	"errors"
	"fmt"
	"io"

	"github.com/ritualarchive/boardsync/internal/archive/csvio"
	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// RowSource yields decoded records until io.EOF. Source names the input in
// error messages.
type RowSource interface {
	Read() (csvio.Record, error)
	Source() string
}

// Index is a natural-key lookup over one side table.
type Index struct {
	values map[string][]any
}

// Build consumes src entirely and indexes every row by keyColumn.
//
// A later row with the same key replaces the earlier one. Rows with an
// empty key are skipped. Any decoding or projection error aborts the build.
func Build(src RowSource, table *schema.Table, keyColumn string) (*Index, error) {
	idx := &Index{values: make(map[string][]any)}

	for {
		rec, err := src.Read()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}

		key, ok := rec.Get(keyColumn)
		if !ok {
			return nil, &csvio.MalformedRowError{
				File:   src.Source(),
				Line:   rec.Line,
				Detail: fmt.Sprintf("missing key column %s", keyColumn),
			}
		}
		if key == "" {
			continue
		}

		vals, err := table.Project(rec)
		if err != nil {
			return nil, ProjectionError(src.Source(), rec.Line, err)
		}

		idx.values[key] = vals
	}
}

// Lookup returns the ordered value list stored under key.
func (idx *Index) Lookup(key string) ([]any, bool) {
	v, ok := idx.values[key]
	return v, ok
}

// Len returns the number of distinct keys.
func (idx *Index) Len() int {
	return len(idx.values)
}

// ProjectionError converts a missing column into a MalformedRowError and
// annotates other projection errors with their position.
func ProjectionError(source string, line int, err error) error {
	var mc *schema.MissingColumnError
	if errors.As(err, &mc) {
		return &csvio.MalformedRowError{File: source, Line: line, Detail: mc.Error()}
	}
	return fmt.Errorf("%s:%d: %w", source, line, err)
}
