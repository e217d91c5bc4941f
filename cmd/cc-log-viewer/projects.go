package main

import (
	"fmt"
	"strconv"

	"github.com/2389-research/cc-log-viewer/internal/config"
	"github.com/2389-research/cc-log-viewer/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProjectsCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects under the watched directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			store := server.NewStore(cfg.Watch.ProjectsDir, cfg.Watch.Extension, zap.NewNop())
			projects, err := store.Projects()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				activity := "-"
				if p.LatestActivity != nil {
					activity = p.LatestActivity.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{p.Name, strconv.Itoa(p.SessionCount), activity})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Project", "Sessions", "Last Activity"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
