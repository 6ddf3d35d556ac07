package csvio

import (
	"bufio"
	"io"
	"strings"
)

// Writer writes records with every field quoted. It is the inverse of
// Reader for the same Dialect.
type Writer struct {
	w       *bufio.Writer
	dialect Dialect
	quote   string
	escaper *strings.Replacer
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer, dialect Dialect) *Writer {
	q := string(dialect.Quote)

	var pairs []string
	if dialect.Escape != 0 {
		e := string(dialect.Escape)
		pairs = append(pairs, e, e+e)
	}
	if dialect.DoubleQuote {
		pairs = append(pairs, q, q+q)
	} else if dialect.Escape != 0 {
		pairs = append(pairs, q, string(dialect.Escape)+q)
	}

	return &Writer{
		w:       bufio.NewWriterSize(w, 64*1024),
		dialect: dialect,
		quote:   q,
		escaper: strings.NewReplacer(pairs...),
	}
}

// Write writes one record followed by a newline.
func (w *Writer) Write(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if _, err := w.w.WriteRune(w.dialect.Comma); err != nil {
				return err
			}
		}
		if _, err := w.w.WriteString(w.quote); err != nil {
			return err
		}
		if _, err := w.escaper.WriteString(w.w, f); err != nil {
			return err
		}
		if _, err := w.w.WriteString(w.quote); err != nil {
			return err
		}
	}
	return w.w.WriteByte('\n')
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
