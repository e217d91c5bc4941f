package main

import (
	"fmt"
	"os"

	"github.com/2389-research/cc-log-viewer/internal/config"
	"github.com/2389-research/cc-log-viewer/internal/export"
	"github.com/2389-research/cc-log-viewer/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCommand(load func() (*config.Config, error)) *cobra.Command {
	var outFlag string

	cmd := &cobra.Command{
		Use:   "export <project> <session>",
		Short: "Export one session as a markdown transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			project, session := args[0], args[1]

			store := server.NewStore(cfg.Watch.ProjectsDir, cfg.Watch.Extension, zap.NewNop())
			entries, err := store.SessionEntries(project, session)
			if err != nil {
				return fmt.Errorf("session %s/%s: %w", project, session, err)
			}

			markdown := export.Markdown(entries, project, session)

			if outFlag == "" {
				fmt.Fprint(cmd.OutOrStdout(), markdown)
				return nil
			}
			if err := os.WriteFile(outFlag, []byte(markdown), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFlag, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outFlag)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFlag, "output", "o", "", "Write the transcript to a file instead of stdout")

	return cmd
}
