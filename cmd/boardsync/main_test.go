package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ritualarchive/boardsync/internal/archive/schema"
	"github.com/ritualarchive/boardsync/internal/config"
)

// seedSource creates a source database holding one small board.
func seedSource(t *testing.T, path string) {
	t.Helper()

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("failed to open source: %v", err)
	}
	defer conn.Close()

	stmts := schema.Render(schema.DefaultTemplate(), "g")
	stmts = append(stmts,
		"INSERT INTO g_images (media_id, media_hash, media, total) VALUES (7, 'abc123', 'a.jpg', 1)",
		"INSERT INTO g_threads (thread_num, time_op, time_last, nreplies) VALUES (100, 1, 2, 1)",
		"INSERT INTO g (num, thread_num, op, media_id, timestamp, comment) VALUES (100, 100, 1, 7, 1, 'op')",
		"INSERT INTO g (num, thread_num, media_id, timestamp, comment) VALUES (101, 100, NULL, 2, 'reply')",
	)
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("failed to seed source: %v\n%s", err, stmt)
		}
	}
}

type testEnv struct {
	dir     string
	cfgFile string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "source.db")
	seedSource(t, src)

	cfgFile := filepath.Join(dir, "boardsync.toml")
	content := `staging_dir = "` + filepath.ToSlash(filepath.Join(dir, "exports")) + `"
database = "` + filepath.ToSlash(filepath.Join(dir, "archive.db")) + `"

[source]
driver = "sqlite3"
path = "` + filepath.ToSlash(src) + `"
password = "hunter2"

[log]
level = "disabled"
`
	if err := os.WriteFile(cfgFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &testEnv{dir: dir, cfgFile: cfgFile}
}

func (e *testEnv) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(append([]string{"--config", e.cfgFile}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_ExportImportStatus(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "export", "--import", "--create-tables")
	if code != 0 {
		t.Fatalf("export exited %d: %s", code, errOut)
	}
	for _, want := range []string{
		"exported 3 tables",
		"1 of 1 boards imported",
		"2 posts, 1 media, 1 threads",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export output missing %q:\n%s", want, out)
		}
	}
	for _, name := range []string{"g.csv", "g_images.csv", "g_threads.csv"} {
		if _, err := os.Stat(filepath.Join(env.dir, "exports", name)); err != nil {
			t.Errorf("%s not staged: %v", name, err)
		}
	}

	// A second import converges on the same rows.
	code, out, errOut = env.run(t, "import")
	if code != 0 {
		t.Fatalf("import exited %d: %s", code, errOut)
	}
	if !strings.Contains(out, "2 posts, 1 media, 1 threads") {
		t.Errorf("import output:\n%s", out)
	}

	code, out, errOut = env.run(t, "status")
	if code != 0 {
		t.Fatalf("status exited %d: %s", code, errOut)
	}
	if !strings.Contains(out, "total") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestRun_ImportInvalidBoard(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "import", "toolong")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut, `invalid board name "toolong"`) {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_StatusWithoutDatabase(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run(t, "status")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "does not exist") {
		t.Errorf("status output = %q", out)
	}
}

func TestRun_SchemaPrint(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "schema", "--print", "mu")
	if code != 0 {
		t.Fatalf("schema exited %d: %s", code, errOut)
	}
	if !strings.Contains(out, "CREATE TABLE IF NOT EXISTS `mu_images`") {
		t.Errorf("schema output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "archive.db")); err == nil {
		t.Error("--print created the database")
	}
}

func TestRun_SchemaCreate(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "schema", "mu", "ck")
	if code != 0 {
		t.Fatalf("schema exited %d: %s", code, errOut)
	}
	if strings.Count(out, "created") != 2 {
		t.Errorf("schema output:\n%s", out)
	}

	_, out, _ = env.run(t, "schema", "mu")
	if !strings.Contains(out, "mu already exists") {
		t.Errorf("second schema output:\n%s", out)
	}
}

func TestRun_ConfigShow(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "--db", "other.db", "config", "show", "--format", "yaml")
	if code != 0 {
		t.Fatalf("config show exited %d: %s", code, errOut)
	}
	if !strings.Contains(out, "database: other.db") {
		t.Errorf("flag not applied:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("config show leaked the source password")
	}
}

func TestSourceDSN(t *testing.T) {
	tests := []struct {
		name    string
		src     config.SourceConfig
		want    string
		wantErr bool
	}{
		{"sqlite", config.SourceConfig{Driver: "sqlite3", Path: "dump.db"}, "file:dump.db?mode=ro", false},
		{"sqlite without path", config.SourceConfig{Driver: "sqlite3"}, "", true},
		{"mysql without name", config.SourceConfig{Driver: "mysql", Host: "db", Port: 3306}, "", true},
		{"unknown", config.SourceConfig{Driver: "postgres"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sourceDSN(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sourceDSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("sourceDSN() = %q, want %q", got, tt.want)
			}
		})
	}

	dsn, err := sourceDSN(config.SourceConfig{Driver: "mysql", Host: "10.0.0.1", Port: 3307, User: "u", Password: "p", Name: "hayden"})
	if err != nil {
		t.Fatalf("sourceDSN() failed: %v", err)
	}
	if !strings.Contains(dsn, "tcp(10.0.0.1:3307)/hayden") {
		t.Errorf("mysql dsn = %q", dsn)
	}
}
