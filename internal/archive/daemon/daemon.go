package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ritualarchive/boardsync/internal/archive/board"
	"github.com/ritualarchive/boardsync/internal/archive/importer"
)

// Importer runs board imports. *importer.Driver implements it.
type Importer interface {
	Run(ctx context.Context) (*importer.RunReport, error)
	ImportBoards(ctx context.Context, boards []string) (*importer.RunReport, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// StagingDir is the directory watched for board files.
	StagingDir string

	// Boards restricts re-imports to the named boards. Empty means all.
	Boards []string

	// Debounce is how long a board's files must be quiet before the board
	// is re-imported. This batches the three files of one export together.
	Debounce time.Duration
}

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// Daemon re-imports boards whenever their staged files change.
type Daemon struct {
	importer Importer
	config   Config
	logger   zerolog.Logger

	watcher *FileWatcher

	queue   map[string]time.Time // board -> last event
	queueMu sync.Mutex

	// imported receives the report of every debounced re-import. Tests
	// use it to synchronise; nil means nobody listens.
	imported chan *importer.RunReport
}

// New creates a Daemon.
func New(imp Importer, config Config, logger zerolog.Logger) (*Daemon, error) {
	if imp == nil {
		return nil, fmt.Errorf("importer cannot be nil")
	}
	if config.StagingDir == "" {
		return nil, fmt.Errorf("staging directory cannot be empty")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		importer: imp,
		config:   config,
		logger:   logger.With().Str("component", "daemon").Logger(),
		watcher:  watcher,
		queue:    make(map[string]time.Time),
	}, nil
}

// Start performs a full import, then watches the staging directory and
// re-imports boards as their files settle. It blocks until ctx is
// cancelled.
//
// Board failures are logged and do not stop the daemon; the next change to
// the board retries it. A naming error in the initial import is returned.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info().Str("staging", d.config.StagingDir).Msg("starting daemon")

	if err := d.watcher.Start(d.config.StagingDir); err != nil {
		return err
	}
	defer d.watcher.Stop()

	if _, err := d.importer.Run(ctx); err != nil {
		var ne *board.NamingError
		if errors.As(err, &ne) {
			return fmt.Errorf("initial import failed: %w", err)
		}
		d.logger.Warn().Err(err).Msg("initial import incomplete")
	}

	ticker := time.NewTicker(max(d.config.Debounce/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("daemon stopped")
			return nil

		case ev, ok := <-d.watcher.Events():
			if !ok {
				return nil
			}
			d.logger.Debug().
				Str("board", ev.Board).
				Str("kind", ev.Kind.String()).
				Str("op", ev.Op.String()).
				Msg("file event")
			d.queueChange(ev.Board)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return nil
			}
			d.logger.Warn().Err(err).Msg("watcher error")

		case <-ticker.C:
			d.processPendingChanges(ctx)
		}
	}
}

// queueChange records activity on a board, restarting its quiet period.
func (d *Daemon) queueChange(name string) {
	if !d.allowed(name) {
		return
	}

	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	d.queue[name] = time.Now()
}

func (d *Daemon) allowed(name string) bool {
	if len(d.config.Boards) == 0 {
		return true
	}
	for _, b := range d.config.Boards {
		if b == name {
			return true
		}
	}
	return false
}

// settled removes and returns the boards that have been quiet for the
// debounce interval.
func (d *Daemon) settled(now time.Time) []string {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()

	var boards []string
	for name, queuedAt := range d.queue {
		if now.Sub(queuedAt) < d.config.Debounce {
			continue
		}
		delete(d.queue, name)
		boards = append(boards, name)
	}
	sort.Strings(boards)
	return boards
}

// processPendingChanges re-imports every settled board whose three files
// are present.
func (d *Daemon) processPendingChanges(ctx context.Context) {
	var ready []string
	for _, name := range d.settled(time.Now()) {
		if !complete(d.config.StagingDir, name) {
			d.logger.Debug().Str("board", name).Msg("board files incomplete, waiting")
			continue
		}
		ready = append(ready, name)
	}
	if len(ready) == 0 {
		return
	}

	report, err := d.importer.ImportBoards(ctx, ready)
	if err != nil {
		d.logger.Warn().Err(err).Strs("boards", ready).Msg("re-import incomplete")
	}
	if d.imported != nil && report != nil {
		select {
		case d.imported <- report:
		case <-ctx.Done():
		}
	}
}

// complete reports whether all three files of a board are staged.
func complete(dir, name string) bool {
	f := board.Paths(dir, name)
	for _, p := range []string{f.Posts, f.Media, f.Threads} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
