package main

import (
	"fmt"
	"log/slog"

	"github.com/sakif/coderunner/internal/config"
	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/executor/docker"
	"github.com/sakif/coderunner/internal/executor/local"
	"github.com/sakif/coderunner/internal/language"
	"github.com/sakif/coderunner/internal/workspace"
)

// buildEngine assembles the engine for the configured backend. The returned
// cleanup releases backend resources.
func buildEngine(cfg *config.Config, logger *slog.Logger, rec executor.Recorder) (*executor.Engine, func(), error) {
	registry := language.Default()

	workspaces, err := workspace.NewManager(cfg.Executor.WorkspaceRoot, logger)
	if err != nil {
		return nil, nil, err
	}

	runner, cleanup, err := buildRunner(cfg, logger, registry)
	if err != nil {
		return nil, nil, err
	}

	engine := executor.NewEngine(registry, workspaces, runner, logger, executor.Options{
		Timeout:      cfg.Executor.Timeout,
		ProbeTimeout: cfg.Executor.ProbeTimeout,
		Recorder:     rec,
	})
	logger.Info("execution engine ready",
		slog.String("backend", cfg.Executor.Backend),
		slog.String("workspace_root", workspaces.Root()),
		slog.Duration("timeout", cfg.Executor.Timeout),
	)
	return engine, cleanup, nil
}

func buildRunner(cfg *config.Config, logger *slog.Logger, registry *language.Registry) (executor.CommandRunner, func(), error) {
	switch cfg.Executor.Backend {
	case config.BackendDocker:
		mem, err := cfg.Docker.MemoryBytes()
		if err != nil {
			return nil, nil, fmt.Errorf("docker.memory: %w", err)
		}
		dc := docker.DefaultConfig()
		dc.MemoryLimit = mem
		dc.CPULimit = cfg.Docker.CPUs
		dc.PidsLimit = cfg.Docker.PidsLimit
		dc.User = cfg.Docker.User
		dc.MaxOutput = cfg.Executor.MaxOutputBytes
		dc.PullTimeout = cfg.Docker.PullTimeout
		if cfg.Docker.TmpfsSize != "" {
			dc.TmpfsSize = cfg.Docker.TmpfsSize
		}
		dc.PullImages = cfg.Docker.PullImages
		if len(dc.PullImages) == 0 {
			dc.PullImages = profileImages(registry)
		}

		r, err := docker.New(dc, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("starting docker backend: %w", err)
		}
		return r, func() { r.Close() }, nil

	default:
		return local.New(local.Options{
			MaxOutput: cfg.Executor.MaxOutputBytes,
			Env:       local.DefaultEnv(),
		}), func() {}, nil
	}
}

// profileImages lists each distinct image the registry references.
func profileImages(registry *language.Registry) []string {
	seen := make(map[string]bool)
	var images []string
	for _, p := range registry.Profiles() {
		if p.Image != "" && !seen[p.Image] {
			seen[p.Image] = true
			images = append(images, p.Image)
		}
	}
	return images
}
