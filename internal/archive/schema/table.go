package schema

import (
	"fmt"
	"strconv"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Text columns are bound as strings.
	Text Kind = iota
	// Int columns are parsed as base-10 int64 before binding.
	Int
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Int:
		return "int"
	default:
		return "unknown"
	}
}

// Column is one declared column of a table.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Table is an ordered table layout.
type Table struct {
	// Suffix is appended to the board name to form the table and file
	// name ("" for posts, "_images", "_threads").
	Suffix string

	// Columns in declaration order.
	Columns []Column

	// Surrogate is the destination-assigned key column, or "" if the
	// table has none.
	Surrogate string

	// NaturalKey is the column carrying the table's unique constraint.
	NaturalKey string
}

// Row is a raw decoded record: column name to field text.
type Row interface {
	Get(column string) (string, bool)
}

// FieldError reports a field that cannot be coerced to its column's kind.
type FieldError struct {
	Column string
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("column %s: invalid value %q: %v", e.Column, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// MissingColumnError reports a declared column absent from a row.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %s", e.Column)
}

// Name returns the table name for the given board.
func (t *Table) Name(board string) string {
	return board + t.Suffix
}

// FileName returns the staged CSV file name for the given board.
func (t *Table) FileName(board string) string {
	return t.Name(board) + ".csv"
}

// WriteColumns returns every column name except the surrogate key, in
// declaration order.
func (t *Table) WriteColumns() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == t.Surrogate {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// ColumnNames returns every column name in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of column within WriteColumns, or -1.
func (t *Table) Index(column string) int {
	i := 0
	for _, c := range t.Columns {
		if c.Name == t.Surrogate {
			continue
		}
		if c.Name == column {
			return i
		}
		i++
	}
	return -1
}

// Project converts a raw row into the typed values of WriteColumns.
//
// Values are int64, string or nil.
func (t *Table) Project(row Row) ([]any, error) {
	values := make([]any, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == t.Surrogate {
			continue
		}
		raw, ok := row.Get(c.Name)
		if !ok {
			return nil, &MissingColumnError{Column: c.Name}
		}
		v, err := c.Coerce(raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Coerce converts one field to the column's kind.
func (c Column) Coerce(raw string) (any, error) {
	if raw == "" && c.Nullable {
		return nil, nil
	}
	switch c.Kind {
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &FieldError{Column: c.Name, Value: raw, Err: err}
		}
		return n, nil
	default:
		return raw, nil
	}
}
