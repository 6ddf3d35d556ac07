package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/archive/board"
	"github.com/ritualarchive/boardsync/internal/archive/importer"
	"github.com/ritualarchive/boardsync/internal/ui"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import [boards...]",
		GroupID: "sync",
		Short:   "Import staged boards into the archive",
		Long: `Import staged boards into the destination database.

Without arguments every board staged in the staging directory is imported
(restricted to the configured boards list, if any). Each board commits or
rolls back as a whole; a failing board is reported and the others still run.

Examples:
  # Import everything staged
  boardsync import

  # Import two boards, four at a time, creating missing tables
  boardsync import g mu --workers 4 --create-tables`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if !board.Valid(name) {
					return &board.NamingError{Board: name}
				}
			}

			driver, closeDB, err := a.newDriver()
			if err != nil {
				return err
			}
			defer closeDB()

			var report *importer.RunReport
			if len(args) > 0 {
				report, err = driver.ImportBoards(cmd.Context(), args)
			} else {
				report, err = driver.Run(cmd.Context())
			}
			if report != nil {
				ui.RenderRun(cmd.OutOrStdout(), report)
			}
			if err != nil && report != nil {
				return fmt.Errorf("%d of %d boards failed", len(report.Failed), len(report.Boards)+len(report.Failed))
			}
			return err
		},
	}
	addImportFlags(cmd)
	return cmd
}

// addImportFlags registers the flags shared by the commands that import.
func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 1, "Number of boards imported concurrently")
	cmd.Flags().Bool("create-tables", false, "Create missing board tables before importing")
}

// newDriver opens the database and builds an import driver from the config.
// The returned func closes the database.
func (a *app) newDriver() (*importer.Driver, func(), error) {
	tmpl, err := a.template()
	if err != nil {
		return nil, nil, err
	}
	database, err := a.openDB()
	if err != nil {
		return nil, nil, err
	}

	driver := importer.NewDriver(database, importer.Options{
		StagingDir:   a.cfg.StagingDir,
		Boards:       a.cfg.Boards,
		Workers:      a.cfg.Workers,
		CreateTables: a.cfg.CreateTables,
		Template:     tmpl,
	}, a.logger)
	return driver, func() { _ = database.Close() }, nil
}
