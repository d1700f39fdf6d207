package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/service"
)

var langFlag string

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Run one source file and print its output",
	Long: `Run one source file through the same engine the API uses.

The program's stdout is printed as-is. On failure the diagnostic goes to
stderr and the exit status is 1. The language is taken from --lang or
guessed from the file extension.

Examples:
  coderunner run hello.py
  coderunner run Main.java
  coderunner run prog.txt --lang ruby`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&langFlag, "lang", "l", "", "Language id (see `coderunner languages`)")
	rootCmd.AddCommand(runCmd)
}

// errExecutionFailed makes the command exit 1 after the diagnostic has
// already been printed.
var errExecutionFailed = errors.New("execution failed")

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	engine, cleanup, err := buildEngine(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	lang := langFlag
	if lang == "" {
		lang = languageFor(engine, path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := service.NewExecutionService(engine, nil, logger, service.Options{MaxSourceBytes: cfg.Executor.MaxSourceBytes})
	res, err := svc.Execute(ctx, executor.Request{
		Source:   string(source),
		Language: lang,
		Filename: filepath.Base(path),
	}, "cli")
	if err != nil {
		return err
	}

	return printResult(cmd, res)
}

func printResult(cmd *cobra.Command, res executor.Result) error {
	fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
	if res.Truncated {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: output truncated at the capture limit")
	}
	if res.OK() {
		return nil
	}

	msg := res.Message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s", res.Status, msg)
	cmd.SilenceErrors = true
	return errExecutionFailed
}

// languageFor picks the profile whose extension matches path. An unknown
// extension falls through to the service default.
func languageFor(engine *executor.Engine, path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, p := range engine.Registry().Profiles() {
		if p.Extension == ext {
			return p.ID
		}
	}
	return ""
}
