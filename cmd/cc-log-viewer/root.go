package main

import (
	"fmt"

	"github.com/2389-research/cc-log-viewer/internal/config"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var projectsDirFlag string
	var portFlag int

	rootCmd := &cobra.Command{
		Use:           "cc-log-viewer",
		Short:         "Web viewer and live tail for Claude Code session logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare invocation serves, matching the reference tool.
			cfg, err := loadConfig(configFlag, projectsDirFlag, portFlag)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&projectsDirFlag, "projects-dir", "", "Projects directory to watch (defaults to ~/.claude/projects)")
	rootCmd.PersistentFlags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on")

	load := func() (*config.Config, error) {
		return loadConfig(configFlag, projectsDirFlag, portFlag)
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newProjectsCommand(load))
	rootCmd.AddCommand(newExportCommand(load))
	rootCmd.AddCommand(newLiveCommand(load))

	return rootCmd
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(configPath, projectsDir string, port int) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if projectsDir != "" {
		cfg.Watch.ProjectsDir = projectsDir
	}
	if port > 0 {
		cfg.Server.ListenAddress = fmt.Sprintf("0.0.0.0:%d", port)
	}
	return cfg, nil
}
