package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/2389-research/cc-log-viewer/internal/config"
	"github.com/2389-research/cc-log-viewer/internal/server"
	"github.com/2389-research/cc-log-viewer/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web viewer and live websocket feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting cc-log-viewer",
		zap.String("listen", cfg.Server.ListenAddress),
		zap.String("projects_dir", cfg.Watch.ProjectsDir))

	// The missing projects directory is the one unrecoverable startup error.
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

	store := server.NewStore(cfg.Watch.ProjectsDir, cfg.Watch.Extension, logger)
	handler := server.NewHandler(store, logger)
	wsHandler := server.NewWSHandler(manager, logger)

	var httpHandler http.Handler = handler.Routes(wsHandler)
	httpHandler = server.RecoveryMiddleware(logger)(httpHandler)
	httpHandler = server.LoggingMiddleware(logger)(httpHandler)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine so shutdown signals can be handled.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.ListenAddress))
		serverErrors <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
			httpServer.Close()
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
