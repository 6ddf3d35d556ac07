package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/ritualarchive/boardsync/internal/archive/importer"
)

// fakeImporter records the boards it is asked to import.
type fakeImporter struct {
	mu      sync.Mutex
	started chan struct{}
	calls   [][]string
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{started: make(chan struct{})}
}

func (f *fakeImporter) Run(ctx context.Context) (*importer.RunReport, error) {
	close(f.started)
	return &importer.RunReport{}, nil
}

func (f *fakeImporter) ImportBoards(ctx context.Context, boards []string) (*importer.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, boards)

	report := &importer.RunReport{}
	for _, b := range boards {
		report.Boards = append(report.Boards, &importer.BoardReport{Board: b})
	}
	return report, nil
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("a\n1\n"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, Config{StagingDir: "x"}, zerolog.Nop()); err == nil {
		t.Error("New(nil importer) succeeded")
	}
	if _, err := New(newFakeImporter(), Config{}, zerolog.Nop()); err == nil {
		t.Error("New(empty staging) succeeded")
	}

	d, err := New(newFakeImporter(), Config{StagingDir: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer d.watcher.Stop()
	if d.config.Debounce != DefaultDebounce {
		t.Errorf("Debounce = %v, want %v", d.config.Debounce, DefaultDebounce)
	}
}

func TestDaemon_ReimportsSettledBoards(t *testing.T) {
	dir := t.TempDir()
	imp := newFakeImporter()

	d, err := New(imp, Config{StagingDir: dir, Debounce: 100 * time.Millisecond, Boards: []string{"g", "mu"}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	d.imported = make(chan *importer.RunReport, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start() failed: %v", err)
		}
	}()

	select {
	case <-imp.started:
	case <-time.After(5 * time.Second):
		t.Fatal("initial import never ran")
	}

	// g is complete, mu is missing its threads, ck is not allowed.
	for _, name := range []string{
		"g.csv", "g_images.csv", "g_threads.csv",
		"mu.csv", "mu_images.csv",
		"ck.csv", "ck_images.csv", "ck_threads.csv",
		"g.csv.tmp",
	} {
		writeFile(t, dir, name)
	}

	select {
	case report := <-d.imported:
		var got []string
		for _, b := range report.Boards {
			got = append(got, b.Board)
		}
		if diff := cmp.Diff([]string{"g"}, got); diff != "" {
			t.Errorf("re-imported boards mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no re-import within 5s")
	}
}

func TestDaemon_SettledDebounce(t *testing.T) {
	d, err := New(newFakeImporter(), Config{StagingDir: t.TempDir(), Debounce: time.Minute}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer d.watcher.Stop()

	d.queueChange("mu")
	d.queueChange("g")

	if got := d.settled(time.Now()); len(got) != 0 {
		t.Errorf("settled() = %v before debounce elapsed", got)
	}
	got := d.settled(time.Now().Add(2 * time.Minute))
	if diff := cmp.Diff([]string{"g", "mu"}, got); diff != "" {
		t.Errorf("settled() mismatch (-want +got):\n%s", diff)
	}
	if got := d.settled(time.Now().Add(2 * time.Minute)); len(got) != 0 {
		t.Errorf("settled() = %v after draining", got)
	}
}
