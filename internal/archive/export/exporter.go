// Package export dumps source database tables into the staging directory.
//
// Each table becomes <staging>/<table>.csv in the staged CSV dialect: every
// field quoted, quotes doubled, backslash as escape character, NULL as an
// empty field. A file is first written under a temporary name and renamed
// into place once complete, so readers never see a partial export.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ritualarchive/boardsync/internal/archive/csvio"
)

// DefaultPageSize is the number of rows fetched from the source at a time.
const DefaultPageSize = 50_000

// TempSuffix marks an export still being written.
const TempSuffix = ".tmp"

// Options configures an Exporter.
type Options struct {
	StagingDir string

	// PageSize is the fetch size. Zero means DefaultPageSize.
	PageSize int

	// Skip lists table name prefixes that are never exported.
	Skip []string
}

// TableReport describes one exported table.
type TableReport struct {
	Table string
	Path  string
	Rows  int64
}

// Report holds the outcome of an export run.
type Report struct {
	Exported []TableReport

	// Existing lists tables skipped because their file was already staged.
	Existing []string

	// Skipped lists tables excluded by a skip prefix.
	Skipped []string

	Duration time.Duration
}

// Exporter writes source tables to the staging directory.
type Exporter struct {
	src    Source
	opts   Options
	logger zerolog.Logger
}

// New creates an Exporter.
func New(src Source, opts Options, logger zerolog.Logger) *Exporter {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Exporter{
		src:    src,
		opts:   opts,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// Run exports every source table that is neither staged already nor
// excluded by a skip prefix. It stops at the first failing table.
func (e *Exporter) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	if err := os.MkdirAll(e.opts.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	tables, err := e.src.Tables(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, table := range tables {
		path := filepath.Join(e.opts.StagingDir, table+".csv")

		if _, err := os.Stat(path); err == nil {
			e.logger.Info().Str("table", table).Str("path", path).Msg("already exported, skipping")
			report.Existing = append(report.Existing, table)
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return report, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if e.skipped(table) {
			report.Skipped = append(report.Skipped, table)
			continue
		}

		rows, err := e.exportTable(ctx, table, path)
		if err != nil {
			return report, fmt.Errorf("failed to export %s: %w", table, err)
		}
		report.Exported = append(report.Exported, TableReport{Table: table, Path: path, Rows: rows})
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (e *Exporter) skipped(table string) bool {
	for _, prefix := range e.opts.Skip {
		if prefix != "" && strings.HasPrefix(table, prefix) {
			return true
		}
	}
	return false
}

// exportTable streams table into path via a temporary file.
func (e *Exporter) exportTable(ctx context.Context, table, path string) (int64, error) {
	tmpPath := path + TempSuffix
	// #nosec G304 - path is built from the staging directory and table name
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w := csvio.NewWriter(f, csvio.DefaultDialect)
	log := e.logger.With().Str("table", table).Logger()

	var rows int64
	fetch := 0
	header := false
	err = e.src.Scan(ctx, table, e.opts.PageSize, func(columns []string, page [][]any) error {
		if !header {
			if err := w.Write(columns); err != nil {
				return err
			}
			header = true
		}

		fetch++
		fields := make([]string, len(columns))
		for _, row := range page {
			for i, v := range row {
				s, err := FormatValue(v)
				if err != nil {
					return fmt.Errorf("row %d column %s: %w", rows+1, columns[i], err)
				}
				fields[i] = s
			}
			if err := w.Write(fields); err != nil {
				return err
			}
			rows++
		}
		log.Debug().Int("fetch", fetch).Str("rows", humanize.Comma(rows)).Msg("fetched page")
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}
	committed = true

	log.Info().Str("rows", humanize.Comma(rows)).Str("path", path).Msg("table exported")
	return rows, nil
}

// FormatValue renders a scanned source value as a CSV field. NULL becomes
// the empty string.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return x.Format(time.DateTime), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
