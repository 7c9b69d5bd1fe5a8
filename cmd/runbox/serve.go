package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the runbox HTTP server",
	Long: `Start the runbox HTTP server with REST API and WebSocket support.

API endpoints are under /api. Sessions whose programs have finished are
reaped in the background; remaining sessions are terminated on shutdown.

Examples:
  runbox serve
  runbox serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	manager, err := newManager(cfg, logger, store)
	if err != nil {
		return fmt.Errorf("creating session engine: %w", err)
	}
	defer manager.Close()

	logger.Info("session engine ready",
		zap.Strings("languages", manager.Languages()),
		zap.Bool("history", store != nil))

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(manager, store, logger, server.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
