package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2389-research/cc-log-viewer/internal/config"
	"github.com/2389-research/cc-log-viewer/internal/tui"
	"github.com/2389-research/cc-log-viewer/internal/watch"
)

func newLiveCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Watch live activity in a terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			// The dashboard owns the terminal, so engine logs are suppressed.
			logger := zap.NewNop()

			source, err := watch.NewFSEventSource(cfg.Watch.ProjectsDir, logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Tip: Claude Code logs are typically stored in ~/.claude/projects/")
				return err
			}
			defer source.Close()

			manager := watch.NewManager(watch.Options{
				Root:           cfg.Watch.ProjectsDir,
				Extension:      cfg.Watch.Extension,
				BatchLimit:     cfg.Watch.BatchLimit,
				BufferCapacity: cfg.Watch.BufferCapacity,
				RescanInterval: cfg.Watch.RescanInterval,
			}, source, logger)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go manager.Start(ctx)

			sub := manager.Subscribe()
			defer sub.Close()

			program := tea.NewProgram(
				tui.New(cfg.Watch.ProjectsDir, sub),
				tea.WithAltScreen(),
			)
			_, err = program.Run()
			return err
		},
	}
}
