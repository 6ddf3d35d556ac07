package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/archive/board"
	"github.com/ritualarchive/boardsync/internal/archive/schema"
	"github.com/ritualarchive/boardsync/internal/ui"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schema <boards...>",
		GroupID: "maint",
		Short:   "Create missing board tables",
		Long: `Create the posts, media and threads tables of each named board that does
not exist yet. Existing boards are left untouched.

The tables come from the built-in template, or from schema_template when set.
Use --print to show the statements for a board instead of running them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if !board.Valid(name) {
					return &board.NamingError{Board: name}
				}
			}

			tmpl, err := a.template()
			if err != nil {
				return err
			}
			if tmpl == "" {
				tmpl = schema.DefaultTemplate()
			}

			out := cmd.OutOrStdout()
			if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
				for _, name := range args {
					for _, stmt := range schema.Render(tmpl, name) {
						fmt.Fprintf(out, "%s;\n\n", stmt)
					}
				}
				return nil
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			for _, name := range args {
				created, err := database.EnsureBoard(cmd.Context(), name, tmpl)
				if err != nil {
					return fmt.Errorf("board %s: %w", name, err)
				}
				if created {
					fmt.Fprintf(out, "%s %s created\n", ui.RenderPass("✓"), name)
				} else {
					fmt.Fprintf(out, "%s %s already exists\n", ui.RenderMuted("·"), name)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "Print the statements instead of running them")
	return cmd
}
