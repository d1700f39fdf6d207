// Command coderunner compiles and runs untrusted programs in a dozen
// languages, either behind an HTTP API (serve) or once from the shell (run).
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/coderunner/internal/config"
	"github.com/sakif/coderunner/internal/logging"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "coderunner",
	Short: "Multi-language code execution engine",
	Long: `coderunner stages a program in a private workspace, compiles it when the
language needs it, runs it with a timeout and reports one of a fixed set of
outcomes: success, compile_error, runtime_error, timeout, toolchain_missing,
not_supported, canceled or internal_error.

Configuration comes from coderunner.yaml (in . or $HOME/.coderunner, or the
file named by --config) and CODERUNNER_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default: ./coderunner.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and builds the logger every subcommand shares.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, closer, nil
}
