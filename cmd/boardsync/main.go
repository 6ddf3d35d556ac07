// Command boardsync moves imageboard archives from CSV exports into a
// SQLite archive, one board at a time.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/archive/db"
	"github.com/ritualarchive/boardsync/internal/archive/schema"
	"github.com/ritualarchive/boardsync/internal/config"
	"github.com/ritualarchive/boardsync/internal/logging"
	"github.com/ritualarchive/boardsync/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if a.closer != nil {
		_ = a.closer.Close()
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		return 1
	}
	return 0
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	closer io.Closer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "boardsync",
		Short: "Reconcile imageboard CSV exports into a SQLite archive",
		Long: `boardsync imports imageboard archives staged as CSV files into a SQLite
database. Every board is staged as three files:

  <board>.csv           posts
  <board>_images.csv    media
  <board>_threads.csv   threads

Each board is imported in its own transaction with upserts keyed on the
natural keys (post num, media hash, thread num), so re-running an import is
always safe and the last import wins.

Settings come from boardsync.toml (or .yaml), BOARDSYNC_* environment
variables and flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(config.Options{File: file, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger, a.closer = logging.New(logging.Config{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
				Output:     logOutput(cfg, cmd.ErrOrStderr()),
			})
			return nil
		},
	}

	root.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Config file (default: boardsync.toml in . or ~/.config/boardsync)")
	pf.String("db", "archive.db", "Destination SQLite database")
	pf.String("staging", "exports", "Directory holding the staged CSV files")
	pf.String("log-level", "info", "Log level: trace, debug, info, warn, error or disabled")
	pf.String("log-format", "auto", "Log format: auto, json or console")
	pf.String("log-file", "", "Write logs to this file (rotated) instead of stderr")

	root.AddCommand(
		newImportCmd(a),
		newExportCmd(a),
		newWatchCmd(a),
		newSchemaCmd(a),
		newStatusCmd(a),
		newConfigCmd(a),
	)
	return root
}

// logOutput keeps logs on the command's stderr unless a log file is set.
func logOutput(cfg *config.Config, stderr io.Writer) io.Writer {
	if cfg.Log.File != "" {
		return nil
	}
	return stderr
}

// openDB opens the destination database with the configured timeouts.
func (a *app) openDB() (*db.DB, error) {
	opts := db.DefaultOptions()
	if a.cfg.BusyTimeout > 0 {
		opts.BusyTimeout = a.cfg.BusyTimeout
	}
	opts.MaxOpenConns = max(opts.MaxOpenConns, a.cfg.Workers+1)
	return db.Open(a.cfg.Database, opts)
}

// template returns the configured DDL template, or "" for the built-in one.
func (a *app) template() (string, error) {
	if a.cfg.SchemaTemplate == "" {
		return "", nil
	}
	return schema.LoadTemplate(a.cfg.SchemaTemplate)
}
