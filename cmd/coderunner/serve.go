package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/coderunner/internal/metrics"
	"github.com/sakif/coderunner/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Examples:
  coderunner serve
  coderunner serve --port 9090
  CODERUNNER_EXECUTOR_BACKEND=docker coderunner serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	m := metrics.New()
	engine, cleanup, err := buildEngine(cfg, logger, m)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(server.Config{
		Port:            port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DBPath:          cfg.Storage.DBPath,
		HistoryLimit:    cfg.Storage.HistoryLimit,
		MaxSourceBytes:  cfg.Executor.MaxSourceBytes,
		JWTSecret:       cfg.Auth.JWTSecret,
	}, logger, server.Deps{
		Executor: engine,
		Registry: engine.Registry(),
		Metrics:  m,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Start()
}
