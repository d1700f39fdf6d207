// Package service holds the business rules between the HTTP/CLI layers and
// the engine: request validation, defaults and execution history.
//
//	Handler → ExecutionService → executor.Executor
//	                           → repository.ExecutionRepository
//
// Nothing here knows about HTTP, so the CLI's run command goes through the
// same checks as the API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/coderunner/internal/apperror"
	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/model"
	"github.com/sakif/coderunner/internal/repository"
)

const (
	// DefaultLanguage is used when a request names none.
	DefaultLanguage = "python"
	// DefaultMaxSourceBytes bounds submitted source.
	DefaultMaxSourceBytes = 100_000
	DefaultListLimit      = 20
	MaxListLimit          = 100

	recordTimeout = 5 * time.Second
)

// Options tunes an ExecutionService. Zero values pick the defaults.
type Options struct {
	MaxSourceBytes int
	// HistoryLimit is how many history rows to keep. Zero keeps everything.
	HistoryLimit int
}

// ExecutionService validates requests, runs them and records the outcome.
type ExecutionService struct {
	exec   executor.Executor
	repo   repository.ExecutionRepository
	logger *slog.Logger
	opts   Options
}

// NewExecutionService wires the service. repo may be nil, which disables
// history.
func NewExecutionService(exec executor.Executor, repo repository.ExecutionRepository, logger *slog.Logger, opts Options) *ExecutionService {
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = DefaultMaxSourceBytes
	}
	return &ExecutionService{exec: exec, repo: repo, logger: logger, opts: opts}
}

// Execute runs req on behalf of client. Only validation problems come back
// as errors; every execution outcome, failures included, is a Result.
func (s *ExecutionService) Execute(ctx context.Context, req executor.Request, client string) (executor.Result, error) {
	if strings.TrimSpace(req.Source) == "" {
		return executor.Result{}, apperror.ValidationFailed("code", "No code provided")
	}
	if len(req.Source) > s.opts.MaxSourceBytes {
		return executor.Result{}, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", s.opts.MaxSourceBytes))
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = DefaultLanguage
	}

	res := s.exec.Execute(ctx, req)
	s.record(ctx, req, res, client)
	return res, nil
}

// record stores res in history. Failures are logged and swallowed: history
// must never change what the caller sees.
func (s *ExecutionService) record(ctx context.Context, req executor.Request, res executor.Result, client string) {
	if s.repo == nil {
		return
	}

	// A disconnected client still gets its execution recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	e := &model.Execution{
		ID:         res.ID,
		Language:   res.Language,
		Status:     string(res.Status),
		Phase:      string(res.Phase),
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
		SourceSize: len(req.Source),
		OutputSize: len(res.Stdout),
		Truncated:  res.Truncated,
		Client:     client,
	}
	if e.Language == "" {
		e.Language = strings.ToLower(strings.TrimSpace(req.Language))
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error("failed to record execution",
			slog.String("id", res.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.opts.HistoryLimit > 0 {
		n, err := s.repo.Prune(ctx, s.opts.HistoryLimit)
		if err != nil {
			s.logger.Warn("failed to prune execution history", slog.String("error", err.Error()))
		} else if n > 0 {
			s.logger.Debug("execution history pruned", slog.Int64("removed", n))
		}
	}
}

// GetByID returns one history entry or apperror.ErrNotFound.
func (s *ExecutionService) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "execution ID is required")
	}
	if s.repo == nil {
		return nil, apperror.NotFound("execution", id)
	}
	return s.repo.GetByID(ctx, id)
}

// List returns history newest first, with limit clamped to 1..100.
func (s *ExecutionService) List(ctx context.Context, limit, offset int) ([]model.Execution, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if s.repo == nil {
		return []model.Execution{}, nil
	}

	executions, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list executions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	return executions, nil
}
