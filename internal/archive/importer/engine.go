package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ritualarchive/boardsync/internal/archive/board"
	"github.com/ritualarchive/boardsync/internal/archive/csvio"
	"github.com/ritualarchive/boardsync/internal/archive/db"
	"github.com/ritualarchive/boardsync/internal/archive/index"
	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// Engine imports the staged files of one board into the destination.
type Engine struct {
	db      *db.DB
	dialect csvio.Dialect
	logger  zerolog.Logger
}

// NewEngine creates an Engine writing to database.
func NewEngine(database *db.DB, logger zerolog.Logger) *Engine {
	return &Engine{
		db:      database,
		dialect: csvio.DefaultDialect,
		logger:  logger.With().Str("component", "engine").Logger(),
	}
}

// postChunk is the number of posts handed to one UpsertBatch call in the
// write pass.
const postChunk = 1000

// plan is the outcome of the validation pass: the side rows the write pass
// needs, in write order. Posts are not retained; the write pass streams the
// posts file a second time.
type plan struct {
	posts   int
	media   []string // distinct source media ids, first appearance
	threads [][]any  // distinct referenced threads, first appearance

	unresolvedMedia   int
	unresolvedThreads int
}

// ImportBoard merges one board's files into the destination in a single
// transaction.
//
// The side tables are indexed first, then every post is decoded and
// validated. Nothing is written until the whole board has validated; a
// malformed row anywhere leaves the destination untouched. The write pass
// upserts referenced media (collecting their destination ids), then
// referenced threads, then streams the posts file again and upserts each
// post with its resolved media id. Only the side-table indexes are held in
// memory.
func (e *Engine) ImportBoard(ctx context.Context, name string, files board.Files) (*BoardReport, error) {
	start := time.Now()
	log := e.logger.With().Str("board", name).Logger()

	media, err := e.buildIndex(files.Media, schema.Media, "media_id")
	if err != nil {
		return nil, err
	}
	threads, err := e.buildIndex(files.Threads, schema.Threads, schema.Threads.NaturalKey)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("media", media.Len()).Int("threads", threads.Len()).Msg("indexed side tables")

	p, err := e.validate(ctx, files.Posts, media, threads)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("posts", p.posts).Msg("validated posts")

	report, err := e.write(ctx, name, files.Posts, p, media)
	if err != nil {
		return nil, err
	}

	report.IndexedMedia = media.Len()
	report.IndexedThreads = threads.Len()
	report.UnresolvedMedia = p.unresolvedMedia
	report.UnresolvedThreads = p.unresolvedThreads
	report.Duration = time.Since(start)
	return report, nil
}

func (e *Engine) buildIndex(path string, t *schema.Table, key string) (*index.Index, error) {
	f, err := csvio.Open(path, e.dialect)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx, err := index.Build(f, t, key)
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", path, err)
	}
	return idx, nil
}

// validate streams the posts file and resolves every reference against the
// side-table indexes without touching the database.
func (e *Engine) validate(ctx context.Context, path string, media, threads *index.Index) (*plan, error) {
	f, err := csvio.Open(path, e.dialect)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &plan{}
	seenMedia := make(map[string]bool)
	seenThreads := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := f.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if _, err := schema.Posts.Project(rec); err != nil {
			return nil, index.ProjectionError(f.Source(), rec.Line, err)
		}
		p.posts++

		mediaKey, _ := rec.Get("media_id")
		if _, ok := media.Lookup(mediaKey); ok {
			if !seenMedia[mediaKey] {
				seenMedia[mediaKey] = true
				p.media = append(p.media, mediaKey)
			}
		} else if mediaKey != "" && mediaKey != "0" {
			p.unresolvedMedia++
		}

		threadKey, _ := rec.Get("thread_num")
		if seenThreads[threadKey] {
			continue
		}
		seenThreads[threadKey] = true
		if row, ok := threads.Lookup(threadKey); ok {
			p.threads = append(p.threads, row)
		} else {
			p.unresolvedThreads++
		}
	}
	return p, nil
}

// write applies a validated plan in one transaction.
func (e *Engine) write(ctx context.Context, name, postsPath string, p *plan, media *index.Index) (*BoardReport, error) {
	tx, err := e.db.Begin(ctx, name)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make(map[string]int64, len(p.media))
	for _, key := range p.media {
		values, _ := media.Lookup(key)
		id, err := tx.UpsertSingle(ctx, schema.Media, values)
		if err != nil {
			return nil, err
		}
		ids[key] = id
	}

	threadCount, err := tx.UpsertBatch(ctx, schema.Threads, p.threads)
	if err != nil {
		return nil, err
	}

	postCount, err := e.writePosts(ctx, tx, postsPath, ids)
	if err != nil {
		return nil, err
	}
	if postCount != p.posts {
		return nil, fmt.Errorf("%s changed during import: validated %d posts, read %d", postsPath, p.posts, postCount)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &BoardReport{
		Board:   name,
		Posts:   postCount,
		Media:   len(ids),
		Threads: threadCount,
	}, nil
}

// writePosts streams the posts file into tx in chunks of postChunk rows,
// replacing each source media id with its destination id (or NULL).
func (e *Engine) writePosts(ctx context.Context, tx *db.Tx, path string, ids map[string]int64) (int, error) {
	f, err := csvio.Open(path, e.dialect)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	mediaPos := schema.Posts.Index("media_id")
	chunk := make([][]any, 0, postChunk)
	written := 0

	flush := func() error {
		n, err := tx.UpsertBatch(ctx, schema.Posts, chunk)
		written += n
		chunk = chunk[:0]
		return err
	}

	for {
		rec, err := f.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}

		values, err := schema.Posts.Project(rec)
		if err != nil {
			return written, index.ProjectionError(f.Source(), rec.Line, err)
		}
		mediaKey, _ := rec.Get("media_id")
		if id, ok := ids[mediaKey]; ok {
			values[mediaPos] = id
		} else {
			values[mediaPos] = nil
		}

		chunk = append(chunk, values)
		if len(chunk) == postChunk {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
