// Package csvio reads and writes the staged CSV files of a board archive.
//
// The files follow the dialect produced by the export step: every field is
// quoted, quotes inside a field are doubled, and a backslash escapes the
// character that follows it. encoding/csv has no escape character, so the
// dialect is implemented here.
package csvio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Dialect describes the delimiter, quoting and escaping of a file.
type Dialect struct {
	Comma       rune
	Quote       rune
	Escape      rune // 0 disables escaping
	DoubleQuote bool
}

// DefaultDialect is the dialect written by the exporter.
var DefaultDialect = Dialect{
	Comma:       ',',
	Quote:       '"',
	Escape:      '\\',
	DoubleQuote: true,
}

// ErrNoHeader is returned when a file has no header row.
var ErrNoHeader = errors.New("missing header row")

// MalformedRowError reports a row whose field count does not match the
// header, or a row missing a column the reader was asked for.
type MalformedRowError struct {
	File   string
	Line   int
	Want   int
	Got    int
	Detail string
}

func (e *MalformedRowError) Error() string {
	where := e.File
	if where == "" {
		where = "<input>"
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s:%d: malformed row: %s", where, e.Line, e.Detail)
	}
	return fmt.Sprintf("%s:%d: malformed row: got %d fields, header has %d", where, e.Line, e.Got, e.Want)
}

type syntaxError string

func (e syntaxError) Error() string { return string(e) }

// Record is one decoded row. Field values are raw strings.
type Record struct {
	Line   int
	index  map[string]int
	fields []string
}

// Get returns the value of column and whether the column exists.
func (r Record) Get(column string) (string, bool) {
	i, ok := r.index[column]
	if !ok {
		return "", false
	}
	return r.fields[i], true
}

// Fields returns the raw fields in header order.
func (r Record) Fields() []string {
	return r.fields
}

// Reader decodes records one at a time. It never holds more than one
// record of raw text.
type Reader struct {
	// Name is used in error messages.
	Name string

	br      *bufio.Reader
	dialect Dialect
	header  []string
	index   map[string]int
	line    int
}

// NewReader reads the header row from r and returns a Reader positioned at
// the first record.
func NewReader(r io.Reader, dialect Dialect) (*Reader, error) {
	rd := &Reader{
		br:      bufio.NewReaderSize(r, 64*1024),
		dialect: dialect,
		line:    1,
	}

	header, _, err := rd.readFields()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rd.header = header
	rd.index = make(map[string]int, len(header))
	for i, name := range header {
		rd.index[name] = i
	}
	return rd, nil
}

// Header returns the column names of the file.
func (r *Reader) Header() []string {
	return r.header
}

// Source returns the name used in error messages.
func (r *Reader) Source() string {
	return r.Name
}

// Line returns the line number the next record starts on.
func (r *Reader) Line() int {
	return r.line
}

// Read returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Read() (Record, error) {
	fields, start, err := r.readFields()
	if err != nil {
		var se syntaxError
		if errors.As(err, &se) {
			return Record{}, &MalformedRowError{File: r.Name, Line: start, Detail: string(se)}
		}
		if err != io.EOF {
			err = fmt.Errorf("%s:%d: %w", r.Name, start, err)
		}
		return Record{}, err
	}
	if len(fields) != len(r.header) {
		return Record{}, &MalformedRowError{
			File: r.Name,
			Line: start,
			Want: len(r.header),
			Got:  len(fields),
		}
	}
	return Record{Line: start, index: r.index, fields: fields}, nil
}

// readFields parses one record. Blank lines are skipped. It returns io.EOF
// only when no record was started.
func (r *Reader) readFields() ([]string, int, error) {
	// skip blank lines
	for {
		c, _, err := r.br.ReadRune()
		if err != nil {
			return nil, r.line, err
		}
		if c == '\n' {
			r.line++
			continue
		}
		if c == '\r' {
			// \r\n is one line end, a bare \r is one as well
			if next, _, err := r.br.ReadRune(); err == nil && next != '\n' {
				_ = r.br.UnreadRune()
			}
			r.line++
			continue
		}
		if err := r.br.UnreadRune(); err != nil {
			return nil, r.line, err
		}
		break
	}

	start := r.line
	var (
		fields []string
		field  strings.Builder
	)
	for {
		end, err := r.readField(&field)
		fields = append(fields, field.String())
		field.Reset()
		if err == io.EOF {
			return fields, start, nil
		}
		if err != nil {
			return nil, start, err
		}
		if end {
			return fields, start, nil
		}
	}
}

// readField reads one field into b. end reports that the field closed the
// record.
func (r *Reader) readField(b *strings.Builder) (end bool, err error) {
	d := r.dialect

	c, _, err := r.br.ReadRune()
	if err != nil {
		return true, err
	}

	quoted := c == d.Quote
	if !quoted {
		if err := r.br.UnreadRune(); err != nil {
			return true, err
		}
	}

	for {
		c, _, err := r.br.ReadRune()
		if err == io.EOF {
			if quoted {
				return true, syntaxError("unterminated quoted field")
			}
			return true, io.EOF
		}
		if err != nil {
			return true, err
		}

		switch {
		case d.Escape != 0 && c == d.Escape:
			next, _, err := r.br.ReadRune()
			if err != nil {
				return true, syntaxError("escape character at end of input")
			}
			if next == '\n' {
				r.line++
			}
			b.WriteRune(next)

		case quoted && c == d.Quote:
			next, _, err := r.br.ReadRune()
			if err == io.EOF {
				return true, io.EOF
			}
			if err != nil {
				return true, err
			}
			if d.DoubleQuote && next == d.Quote {
				b.WriteRune(d.Quote)
				continue
			}
			quoted = false
			if err := r.br.UnreadRune(); err != nil {
				return true, err
			}

		case quoted:
			if c == '\n' {
				r.line++
			}
			b.WriteRune(c)

		case c == d.Comma:
			return false, nil

		case c == '\n':
			r.line++
			return true, nil

		case c == '\r':
			next, _, err := r.br.ReadRune()
			if err == nil && next != '\n' {
				_ = r.br.UnreadRune()
			}
			r.line++
			return true, nil

		default:
			b.WriteRune(c)
		}
	}
}

// File is a Reader over an open file.
type File struct {
	*Reader
	f *os.File
}

// Open opens path and reads its header.
func Open(path string, dialect Dialect) (*File, error) {
	// #nosec G304 - staging paths come from the operator's config
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	rd, err := NewReader(f, dialect)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rd.Name = path

	return &File{Reader: rd, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
