package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/archive/export"
	"github.com/ritualarchive/boardsync/internal/config"
	"github.com/ritualarchive/boardsync/internal/ui"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export",
		GroupID: "sync",
		Short:   "Export source tables to staged CSV files",
		Long: `Export every table of the source database to <staging>/<table>.csv.

Tables whose file is already staged are left alone, so an interrupted export
resumes where it stopped. Tables matching a source.skip prefix are never
exported. Files are written under a temporary name and renamed into place
once complete.

The source is MySQL (source.host, source.port, source.user, source.password,
source.name) or a SQLite file (source.driver = "sqlite3", source.path).

Examples:
  # Export, then import what was exported
  boardsync export --import

  # Export from a local SQLite copy
  BOARDSYNC_SOURCE_DRIVER=sqlite3 BOARDSYNC_SOURCE_PATH=dump.db boardsync export`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := sourceDSN(a.cfg.Source)
			if err != nil {
				return err
			}
			src, err := export.OpenSource(a.cfg.Source.Driver, dsn)
			if err != nil {
				return err
			}
			defer src.Close()

			exp := export.New(src, export.Options{
				StagingDir: a.cfg.StagingDir,
				PageSize:   a.cfg.Source.PageSize,
				Skip:       a.cfg.Source.Skip,
			}, a.logger)
			report, err := exp.Run(cmd.Context())
			if report != nil {
				ui.RenderExport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}

			if then, _ := cmd.Flags().GetBool("import"); !then {
				return nil
			}
			driver, closeDB, err := a.newDriver()
			if err != nil {
				return err
			}
			defer closeDB()

			runReport, err := driver.Run(cmd.Context())
			if runReport != nil {
				ui.RenderRun(cmd.OutOrStdout(), runReport)
			}
			return err
		},
	}
	cmd.Flags().Int("page-size", export.DefaultPageSize, "Rows fetched from the source at a time")
	cmd.Flags().Bool("import", false, "Import the staged boards after exporting")
	addImportFlags(cmd)
	return cmd
}

// sourceDSN builds the data source name of the configured source.
func sourceDSN(src config.SourceConfig) (string, error) {
	switch src.Driver {
	case export.DriverMySQL:
		if src.Name == "" {
			return "", fmt.Errorf("source.name is required for a mysql source")
		}
		return export.MySQLConfig{
			Host:     src.Host,
			Port:     src.Port,
			User:     src.User,
			Password: src.Password,
			Name:     src.Name,
		}.DSN(), nil
	case export.DriverSQLite:
		if src.Path == "" {
			return "", fmt.Errorf("source.path is required for a sqlite3 source")
		}
		return "file:" + src.Path + "?mode=ro", nil
	default:
		return "", fmt.Errorf("unsupported source driver %q", src.Driver)
	}
}
