// Package board discovers the boards present in a staging directory.
//
// A board's files are <board>.csv, <board>_images.csv and <board>_threads.csv.
// The board name is the file name up to the first underscore, without the
// .csv extension. Names that look like database bookkeeping tables (index,
// information_schema, sequences and the like) are ignored.
package board

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ritualarchive/boardsync/internal/archive/schema"
)

// MaxNameLen is the longest valid board name.
const MaxNameLen = 3

// artifactPattern matches export artifacts that are not boards.
var artifactPattern = regexp.MustCompile(`(?i)^(index|idx|information|schema|seq|trig|proc|view|part)`)

// NamingError reports a staged file whose derived board name is empty or
// too long. It aborts the whole run.
type NamingError struct {
	File  string
	Board string
}

func (e *NamingError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("invalid board name %q: want 1-%d characters", e.Board, MaxNameLen)
	}
	return fmt.Sprintf("invalid board name %q derived from %s: want 1-%d characters", e.Board, e.File, MaxNameLen)
}

// Files holds the staged paths of one board.
type Files struct {
	Posts   string
	Media   string
	Threads string
}

// Paths returns the staged file paths of board under dir.
func Paths(dir, board string) Files {
	return Files{
		Posts:   filepath.Join(dir, schema.Posts.FileName(board)),
		Media:   filepath.Join(dir, schema.Media.FileName(board)),
		Threads: filepath.Join(dir, schema.Threads.FileName(board)),
	}
}

// NameOf derives the board name from a staged file name.
func NameOf(file string) string {
	base := filepath.Base(file)
	if i := strings.IndexByte(base, '_'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, ".csv")
}

// IsArtifact reports whether name is a bookkeeping table rather than a board.
func IsArtifact(name string) bool {
	return artifactPattern.MatchString(name)
}

// Valid reports whether name satisfies the board naming rules.
func Valid(name string) bool {
	return len(name) > 0 && len(name) <= MaxNameLen
}

// Discover lists the boards staged in dir, sorted and deduplicated.
//
// When allow is non-empty only boards it names are returned. Artifact names
// are skipped. Any other name outside 1-3 characters is a NamingError.
func Discover(dir string, allow []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	allowed := make(map[string]bool, len(allow))
	for _, a := range allow {
		allowed[a] = true
	}

	seen := make(map[string]bool)
	var boards []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}

		name := NameOf(e.Name())
		if len(allowed) > 0 && !allowed[name] {
			continue
		}
		if IsArtifact(name) {
			continue
		}
		if !Valid(name) {
			return nil, &NamingError{File: e.Name(), Board: name}
		}
		if !seen[name] {
			seen[name] = true
			boards = append(boards, name)
		}
	}

	sort.Strings(boards)
	return boards, nil
}
