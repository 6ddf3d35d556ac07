package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/archive/db"
	"github.com/ritualarchive/boardsync/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "status [boards...]",
		GroupID: "maint",
		Short:   "Show per-board row counts",
		Long: `Show the row counts of every imported board, or of the named boards.

Only boards whose three tables all exist are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			info, err := os.Stat(a.cfg.Database)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(out, "%s %s does not exist\n", ui.RenderWarn("⚠"), a.cfg.Database)
				fmt.Fprintf(out, "   Run 'boardsync import' to create it\n")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to stat database: %w", err)
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			boards := args
			if len(boards) == 0 {
				if boards, err = database.Boards(cmd.Context()); err != nil {
					return err
				}
			}

			stats := make([]*db.BoardStats, 0, len(boards))
			for _, name := range boards {
				s, err := database.Stats(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("board %s: %w", name, err)
				}
				stats = append(stats, s)
			}

			ui.RenderStatus(out, a.cfg.Database, info.Size(), stats)
			return nil
		},
	}
}
