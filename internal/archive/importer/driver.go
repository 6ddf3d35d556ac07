package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ritualarchive/boardsync/internal/archive/board"
	"github.com/ritualarchive/boardsync/internal/archive/db"
	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// Options configures a Driver.
type Options struct {
	// StagingDir holds the staged CSV files.
	StagingDir string

	// Boards restricts the run to the named boards. Empty means every
	// board discovered in StagingDir.
	Boards []string

	// Workers is the number of boards imported concurrently. Values
	// below 1 mean 1.
	Workers int

	// CreateTables creates missing board tables from Template before
	// importing.
	CreateTables bool

	// Template is the DDL template used by CreateTables. Empty means the
	// embedded default.
	Template string
}

// Driver runs the engine over every board of a staging directory.
type Driver struct {
	db     *db.DB
	engine *Engine
	opts   Options
	logger zerolog.Logger
}

// NewDriver creates a Driver.
func NewDriver(database *db.DB, opts Options, logger zerolog.Logger) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Template == "" {
		opts.Template = schema.DefaultTemplate()
	}
	return &Driver{
		db:     database,
		engine: NewEngine(database, logger),
		opts:   opts,
		logger: logger.With().Str("component", "driver").Logger(),
	}
}

// Run discovers the staged boards and imports each one.
//
// A naming error aborts the run before anything is written. Otherwise every
// board is attempted: a failing board is rolled back, logged and reported,
// and the remaining boards still run. The returned error joins the errors of
// every failed board.
func (d *Driver) Run(ctx context.Context) (*RunReport, error) {
	boards, err := board.Discover(d.opts.StagingDir, d.opts.Boards)
	if err != nil {
		return nil, err
	}
	if len(boards) == 0 {
		d.logger.Warn().Str("staging", d.opts.StagingDir).Msg("no boards found")
	}
	return d.ImportBoards(ctx, boards)
}

// ImportBoards imports the named boards, each in its own transaction.
func (d *Driver) ImportBoards(ctx context.Context, boards []string) (*RunReport, error) {
	report := &RunReport{StartTime: time.Now()}
	reports := make([]*BoardReport, len(boards))
	errs := make([]error, len(boards))

	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for i, name := range boards {
		g.Go(func() error {
			reports[i], errs[i] = d.importBoard(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var joined []error
	for i, name := range boards {
		if errs[i] != nil {
			report.Failed = append(report.Failed, BoardFailure{Board: name, Err: errs[i]})
			joined = append(joined, fmt.Errorf("board %s: %w", name, errs[i]))
			continue
		}
		report.Boards = append(report.Boards, reports[i])
	}
	report.EndTime = time.Now()

	posts, media, threads := report.Totals()
	d.logger.Info().
		Int("boards", len(report.Boards)).
		Int("failed", len(report.Failed)).
		Str("posts", humanize.Comma(int64(posts))).
		Str("media", humanize.Comma(int64(media))).
		Str("threads", humanize.Comma(int64(threads))).
		Dur("elapsed", report.Duration()).
		Msg("import finished")

	return report, errors.Join(joined...)
}

func (d *Driver) importBoard(ctx context.Context, name string) (*BoardReport, error) {
	log := d.logger.With().Str("board", name).Logger()
	log.Info().Msg("importing board")

	var created bool
	if d.opts.CreateTables {
		var err error
		created, err = d.db.EnsureBoard(ctx, name, d.opts.Template)
		if err != nil {
			log.Error().Err(err).Msg("failed to create tables")
			return nil, err
		}
		if created {
			log.Info().Msg("created tables")
		}
	}

	if err := d.db.CheckNaturalKeys(ctx, name); err != nil {
		log.Error().Err(err).Msg("destination not ready")
		return nil, err
	}

	rep, err := d.engine.ImportBoard(ctx, name, board.Paths(d.opts.StagingDir, name))
	if err != nil {
		log.Error().Err(err).Msg("board rolled back")
		return nil, err
	}
	rep.Created = created

	log.Info().
		Int("posts", rep.Posts).
		Int("media", rep.Media).
		Int("threads", rep.Threads).
		Int("unresolved_media", rep.UnresolvedMedia).
		Dur("elapsed", rep.Duration).
		Msg("board committed")
	return rep, nil
}
