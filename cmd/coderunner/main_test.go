package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sakif/coderunner/internal/auth"
	"github.com/sakif/coderunner/internal/config"
	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/language"
)

func TestPrintLanguages_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLanguages(&buf, language.Default(), "table"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 13)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, buf.String(), "javac {source}")
	assert.Contains(t, buf.String(), "python3 {source}")
}

func TestPrintLanguages_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLanguages(&buf, language.Default(), "yaml"))

	var profiles []language.Profile
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &profiles))
	require.Len(t, profiles, 12)
	assert.Equal(t, "c", profiles[0].ID)

	byID := make(map[string]language.Profile)
	for _, p := range profiles {
		byID[p.ID] = p
	}
	assert.True(t, byID["java"].RequiresClassName)
	assert.Equal(t, "Main", byID["java"].DefaultName)
}

func TestPrintLanguages_UnknownFormat(t *testing.T) {
	assert.Error(t, printLanguages(io.Discard, language.Default(), "xml"))
}

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name       string
		res        executor.Result
		wantOut    string
		wantErrOut string
		wantErr    bool
	}{
		{"success", executor.Result{Status: executor.StatusSuccess, Stdout: "hi\n"}, "hi\n", "", false},
		{"runtime error", executor.Result{Status: executor.StatusRuntimeError, Stdout: "partial\n", Message: "boom"}, "partial\n", "runtime_error: boom\n", true},
		{"compile error", executor.Result{Status: executor.StatusCompileError, Message: "main.c:1: error\n"}, "", "compile_error: main.c:1: error\n", true},
		{"truncated", executor.Result{Status: executor.StatusSuccess, Stdout: "yyy", Truncated: true}, "yyy", "warning: output truncated at the capture limit\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)
			cmd.SetErr(&errOut)

			err := printResult(cmd, tt.res)

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErrOut, errOut.String())
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestLanguageFor(t *testing.T) {
	cfg := &config.Config{Executor: config.ExecutorConfig{
		Backend:        config.BackendLocal,
		WorkspaceRoot:  t.TempDir(),
		MaxOutputBytes: 1 << 10,
	}}
	engine, cleanup, err := buildEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)
	defer cleanup()

	tests := map[string]string{
		"hello.py":       "python",
		"Main.java":      "java",
		"src/prog.CPP":   "cpp",
		"index.ts":       "typescript",
		"notes.txt":      "",
		"no-extension":   "",
		"dir.rs/main.kt": "kotlin",
	}
	for path, want := range tests {
		assert.Equal(t, want, languageFor(engine, path), path)
	}
}

func TestBuildRunner_LocalHidesServerEnvironment(t *testing.T) {
	t.Setenv("CODERUNNER_AUTH_JWT_SECRET", "super-secret-signing-key")
	cfg := &config.Config{Executor: config.ExecutorConfig{Backend: config.BackendLocal, MaxOutputBytes: 1 << 10}}

	runner, cleanup, err := buildRunner(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), language.Default())
	require.NoError(t, err)
	defer cleanup()

	out, err := runner.Run(context.Background(), executor.Command{
		Args:    []string{"sh", "-c", `echo "[$CODERUNNER_AUTH_JWT_SECRET]"`},
		Dir:     t.TempDir(),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out.Stdout)
}

func TestProfileImages(t *testing.T) {
	images := profileImages(language.Default())

	seen := make(map[string]bool)
	for _, img := range images {
		assert.False(t, seen[img], "duplicate image %s", img)
		seen[img] = true
	}
	assert.Contains(t, images, "python:3.12-alpine")
}

func TestTokenCommand(t *testing.T) {
	const secret = "cli-test-secret-0123456789"
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CODERUNNER_AUTH_JWT_SECRET", secret)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "ci-bot"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	tokens, err := auth.NewTokenService(secret)
	require.NoError(t, err)
	client, err := tokens.Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", client)
}
