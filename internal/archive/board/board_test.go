package board

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("a\n"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", n, err)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"g.csv", "g_images.csv", "g_threads.csv",
		"mu.csv", "mu_images.csv", "mu_threads.csv",
		"r9k.csv",
		"index_stats.csv", "information_schema.csv", "SEQ_deleted.csv",
		"notes.txt",
	)
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	boards, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"g", "mu", "r9k"}, boards); diff != "" {
		t.Errorf("Discover() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscover_AllowList(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "g.csv", "mu.csv", "toolong.csv")

	boards, err := Discover(dir, []string{"mu", "ck"})
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"mu"}, boards); diff != "" {
		t.Errorf("Discover() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscover_NamingError(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"too long", "toolong.csv"},
		{"empty", "_images.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, "g.csv", tt.file)

			_, err := Discover(dir, nil)
			var ne *NamingError
			if !errors.As(err, &ne) {
				t.Fatalf("Discover() error = %v, want *NamingError", err)
			}
			if ne.File != tt.file {
				t.Errorf("NamingError.File = %q, want %q", ne.File, tt.file)
			}
		})
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Discover() error = %v, want os.ErrNotExist", err)
	}
}

func TestNameOf(t *testing.T) {
	tests := map[string]string{
		"g.csv":               "g",
		"g_images.csv":        "g",
		"r9k_threads.csv":     "r9k",
		"/staging/mu.csv":     "mu",
		"index_board_idx.csv": "index",
	}
	for file, want := range tests {
		if got := NameOf(file); got != want {
			t.Errorf("NameOf(%q) = %q, want %q", file, got, want)
		}
	}
}

func TestPaths(t *testing.T) {
	got := Paths("/staging", "g")
	want := Files{
		Posts:   filepath.Join("/staging", "g.csv"),
		Media:   filepath.Join("/staging", "g_images.csv"),
		Threads: filepath.Join("/staging", "g_threads.csv"),
	}
	if got != want {
		t.Errorf("Paths() = %+v, want %+v", got, want)
	}
}
