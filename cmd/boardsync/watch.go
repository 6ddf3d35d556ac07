package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/archive/daemon"
	"github.com/ritualarchive/boardsync/internal/ui"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "sync",
		Short:   "Import boards continuously as their files are staged",
		Long: `Watch the staging directory and keep the archive in sync with it.

The daemon first imports every staged board, then re-imports a board
whenever its files change and have been quiet for the debounce interval.
A board is only re-imported once all three of its files are staged.

Runs in the foreground until interrupted (Ctrl+C or SIGTERM).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, closeDB, err := a.newDriver()
			if err != nil {
				return err
			}
			defer closeDB()

			d, err := daemon.New(driver, daemon.Config{
				StagingDir: a.cfg.StagingDir,
				Boards:     a.cfg.Boards,
				Debounce:   a.cfg.Watch.Debounce,
			}, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Watching %s\n", ui.RenderAccent("●"), a.cfg.StagingDir)
			fmt.Fprintf(out, "   Database: %s\n", a.cfg.Database)
			fmt.Fprintf(out, "   Debounce: %s\n", a.cfg.Watch.Debounce)
			fmt.Fprintf(out, "\nPress Ctrl+C to stop\n\n")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := d.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(out, "%s Stopped\n", ui.RenderPass("✓"))
			return nil
		},
	}
	addImportFlags(cmd)
	cmd.Flags().Duration("debounce", daemon.DefaultDebounce, "Quiet period before a changed board is re-imported")
	return cmd
}
