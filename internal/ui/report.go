package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/ritualarchive/boardsync/internal/archive/db"
	"github.com/ritualarchive/boardsync/internal/archive/export"
	"github.com/ritualarchive/boardsync/internal/archive/importer"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col > 0 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
}

func comma(n int64) string { return humanize.Comma(n) }

// RenderRun writes the summary of an import run.
func RenderRun(w io.Writer, r *importer.RunReport) {
	if len(r.Boards) > 0 {
		t := newTable("board", "posts", "media", "threads", "unresolved media", "time")
		for _, b := range r.Boards {
			name := b.Board
			if b.Created {
				name += " " + RenderMuted("(created)")
			}
			t.Row(name,
				comma(int64(b.Posts)),
				comma(int64(b.Media)),
				comma(int64(b.Threads)),
				comma(int64(b.UnresolvedMedia)),
				b.Duration.Round(time.Millisecond).String())
		}
		fmt.Fprintln(w, t.String())
	}

	for _, f := range r.Failed {
		fmt.Fprintf(w, "%s %s: %v\n", RenderFail("✗"), f.Board, f.Err)
	}

	posts, media, threads := r.Totals()
	marker := RenderPass("✓")
	if len(r.Failed) > 0 {
		marker = RenderWarn("⚠")
	}
	fmt.Fprintf(w, "%s %d of %d boards imported in %s: %s posts, %s media, %s threads\n",
		marker,
		len(r.Boards), len(r.Boards)+len(r.Failed),
		r.Duration().Round(time.Millisecond),
		comma(int64(posts)), comma(int64(media)), comma(int64(threads)))
}

// RenderExport writes the summary of an export run.
func RenderExport(w io.Writer, r *export.Report) {
	if len(r.Exported) > 0 {
		t := newTable("table", "rows", "file")
		for _, tr := range r.Exported {
			t.Row(tr.Table, comma(tr.Rows), tr.Path)
		}
		fmt.Fprintln(w, t.String())
	}
	if len(r.Existing) > 0 {
		fmt.Fprintf(w, "%s already staged: %s\n", RenderMuted("·"), strings.Join(r.Existing, ", "))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%s skipped: %s\n", RenderMuted("·"), strings.Join(r.Skipped, ", "))
	}

	var rows int64
	for _, tr := range r.Exported {
		rows += tr.Rows
	}
	fmt.Fprintf(w, "%s exported %d tables (%s rows) in %s\n",
		RenderPass("✓"), len(r.Exported), comma(rows), r.Duration.Round(time.Millisecond))
}

// RenderStatus writes the row counts of every board in the destination
// database. size is the database file size in bytes.
func RenderStatus(w io.Writer, path string, size int64, stats []*db.BoardStats) {
	fmt.Fprintf(w, "%s %s (%s)\n", RenderAccent("●"), path, humanize.Bytes(uint64(size)))
	if len(stats) == 0 {
		fmt.Fprintf(w, "%s no boards imported yet\n", RenderWarn("⚠"))
		return
	}

	t := newTable("board", "posts", "media", "threads")
	var posts, media, threads int64
	for _, s := range stats {
		t.Row(s.Board, comma(s.Posts), comma(s.Media), comma(s.Threads))
		posts += s.Posts
		media += s.Media
		threads += s.Threads
	}
	t.Row(RenderMuted("total"), comma(posts), comma(media), comma(threads))
	fmt.Fprintln(w, t.String())
}
