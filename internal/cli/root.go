// Package cli implements the walletd command-line interface.
//
// This package uses global variables to manage CLI state, which is the
// standard pattern for Cobra-based applications. The globals are
// initialized in PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eigenix/walletd/internal/config"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// DefaultConfigPath is where walletd looks for its configuration when
// --config is not given.
const DefaultConfigPath = "/etc/walletd/config.yaml"

var (
	// Global flags
	configPath string
	verbose    bool

	// Global state initialized in PersistentPreRunE
	cfg    *config.Config
	logger *config.Logger
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Swap wallet reconciliation daemon",
	Long: `walletd keeps a Bitcoin Core wallet and a monero-wallet-rpc wallet
loaded and healthy, restoring either one from the upstream seed
authority when its host has lost it. Balances and health are exposed
over HTTP and Prometheus metrics.

Example:
  walletd serve --config /etc/walletd/config.yaml
  walletd check
  walletd config show`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if suggestion := walleterr.Suggestion(err); suggestion != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", suggestion)
		}
	}
	return err
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return walleterr.ExitCode(err)
}

// initGlobals loads configuration and sets up the logger.
func initGlobals() error {
	path := configPath
	if path == "" {
		path = DefaultConfigPath
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		// A missing file is fine when everything arrives via env vars.
		if !walleterr.Is(err, walleterr.ErrConfigNotFound) {
			return err
		}
		cfg = config.Defaults()
	}

	config.ApplyEnvironment(cfg)

	if verbose {
		cfg.Logging.Level = "debug"
	}

	logLevel := config.ParseLogLevel(cfg.Logging.Level)
	logger, err = config.NewLogger(logLevel, cfg.Logging.File)
	if err != nil {
		// Fall back to a null logger if the log file cannot be created.
		logger = config.NullLogger()
	}

	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: "+DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
