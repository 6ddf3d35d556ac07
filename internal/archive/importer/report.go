package importer

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// BoardReport holds the outcome of one successful board import.
type BoardReport struct {
	Board string

	// Rows written to each table.
	Posts   int
	Media   int
	Threads int

	// Rows read from the side tables.
	IndexedMedia   int
	IndexedThreads int

	// UnresolvedMedia counts posts naming a media id absent from the
	// images file; they are written with a NULL media_id.
	UnresolvedMedia int

	// UnresolvedThreads counts distinct thread numbers absent from the
	// threads file.
	UnresolvedThreads int

	// Created is set when the board's tables were created by this run.
	Created bool

	Duration time.Duration
}

// String returns a one-line summary.
func (r *BoardReport) String() string {
	return fmt.Sprintf("%s: %s posts, %s media, %s threads in %s",
		r.Board,
		humanize.Comma(int64(r.Posts)),
		humanize.Comma(int64(r.Media)),
		humanize.Comma(int64(r.Threads)),
		r.Duration.Round(time.Millisecond))
}

// BoardFailure records a board whose import was rolled back.
type BoardFailure struct {
	Board string
	Err   error
}

// RunReport holds the outcome of a driver run.
type RunReport struct {
	// Boards that committed, in name order.
	Boards []*BoardReport

	// Failed boards, in name order.
	Failed []BoardFailure

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Totals sums the written rows over every committed board.
func (r *RunReport) Totals() (posts, media, threads int) {
	for _, b := range r.Boards {
		posts += b.Posts
		media += b.Media
		threads += b.Threads
	}
	return posts, media, threads
}
