package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/config"
	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/storage"
	"github.com/michaelbrown/runbox/internal/storage/sqlite"
	"github.com/michaelbrown/runbox/internal/workspace"
)

var (
	configFlag string
	serverFlag string
)

var rootCmd = &cobra.Command{
	Use:   "runbox",
	Short: "runbox - interactive code execution sessions",
	Long: `runbox compiles and runs short programs in throwaway workspaces and lets
you talk to them while they run: send a line of input, read what they print,
stop them when you are done.

It can serve an HTTP API for other clients or run a program straight from
your terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./runbox.yaml or ~/.runbox/runbox.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Use a remote runbox server instead of running locally (e.g. http://localhost:5000)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config and builds the logger it describes.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore opens run history, or returns nil when it is disabled.
func openStore(cfg *config.Config) (storage.Store, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

// newManager builds a local session engine from cfg. store may be nil.
func newManager(cfg *config.Config, logger *zap.Logger, store storage.Store) (*runner.Manager, error) {
	table, err := cfg.Toolchains()
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithToolchains(table),
		runner.WithTiming(cfg.Execution.Timing()),
		runner.WithProvisioner(workspace.NewTempProvisioner(cfg.Execution.WorkspaceRoot)),
		runner.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, runner.WithRecorder(store))
	}
	return runner.NewManager(opts...), nil
}
