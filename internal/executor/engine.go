package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/coderunner/internal/language"
	"github.com/sakif/coderunner/internal/workspace"
)

const (
	// DefaultTimeout bounds each compile and run phase.
	DefaultTimeout = 10 * time.Second
	// DefaultProbeTimeout bounds the toolchain availability check.
	DefaultProbeTimeout = 3 * time.Second
)

// Options tunes an Engine. Zero values pick the defaults.
type Options struct {
	Timeout      time.Duration
	ProbeTimeout time.Duration
	Recorder     Recorder
}

// Engine is the profile-driven executor. It holds no per-execution state
// and is safe for concurrent use.
type Engine struct {
	registry   *language.Registry
	workspaces *workspace.Manager
	runner     CommandRunner
	logger     *slog.Logger
	recorder   Recorder

	timeout      time.Duration
	probeTimeout time.Duration
}

var _ Executor = (*Engine)(nil)

// NewEngine wires the registry, workspace manager and process backend.
func NewEngine(registry *language.Registry, workspaces *workspace.Manager, runner CommandRunner, logger *slog.Logger, opts Options) *Engine {
	e := &Engine{
		registry:     registry,
		workspaces:   workspaces,
		runner:       runner,
		logger:       logger,
		recorder:     opts.Recorder,
		timeout:      opts.Timeout,
		probeTimeout: opts.ProbeTimeout,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.probeTimeout <= 0 {
		e.probeTimeout = DefaultProbeTimeout
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	return e
}

// Registry exposes the language table the engine resolves against.
func (e *Engine) Registry() *language.Registry {
	return e.registry
}

// Execute stages, compiles and runs req. It always returns a Result.
func (e *Engine) Execute(ctx context.Context, req Request) (res Result) {
	start := time.Now()

	profile, err := e.registry.Resolve(req.Language)
	if err != nil {
		res = Result{
			Language: req.Language,
			Status:   StatusNotSupported,
			Message:  err.Error(),
			ExitCode: -1,
		}
		e.recorder.ObserveResult("unsupported", res.Status, 0)
		return res
	}

	e.recorder.InFlight(1)
	defer e.recorder.InFlight(-1)

	id := xid.New().String()
	logger := e.logger.With(slog.String("language", profile.ID))

	// Registered first so it runs last: the workspace release below has
	// already happened when a panic is turned into a Result here.
	defer func() {
		if p := recover(); p != nil {
			logger.Error("executor panic",
				slog.String("ref", id),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			res = e.internal(id, profile.ID, start)
		}
		e.recorder.ObserveResult(res.Language, res.Status, res.Duration)
	}()

	ws, err := e.workspaces.Stage(req.Source, req.Filename, profile)
	if err != nil {
		logger.Error("staging workspace failed", slog.String("ref", id), slog.String("error", err.Error()))
		return e.internal(id, profile.ID, start)
	}
	defer e.workspaces.Release(ws)

	id = ws.ID
	logger = logger.With(slog.String("execution", id))

	outcomes := e.phases(ctx, logger, ws, profile)
	res = Normalize(outcomes)

	res.ID = id
	res.Language = profile.ID
	res.Duration = time.Since(start)
	res.Message = scrub(res.Message, ws.Dir)
	if res.Status == StatusInternalError {
		for _, po := range outcomes {
			if po.Err != nil && !errors.Is(po.Err, ErrLaunch) {
				logger.Error("phase failed", slog.String("phase", string(po.Phase)), slog.String("error", po.Err.Error()))
			}
		}
		res.Message = fmt.Sprintf("%s (ref %s)", res.Message, id)
	}

	logger.Info("execution finished",
		slog.String("status", string(res.Status)),
		slog.String("phase", string(res.Phase)),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res
}

// phases runs probe, compile and run in order, stopping at the first phase
// that does not succeed. Compile strictly precedes run.
func (e *Engine) phases(ctx context.Context, logger *slog.Logger, ws *workspace.Workspace, p language.Profile) []PhaseOutcome {
	steps := []struct {
		phase Phase
		argv  []string
		limit time.Duration
	}{
		{PhaseProbe, p.Probe, e.probeTimeout},
		{PhaseCompile, language.Expand(p.Compile, ws.SourceFile), e.timeout},
		{PhaseRun, language.Expand(p.Run, ws.SourceFile), e.timeout},
	}

	outcomes := make([]PhaseOutcome, 0, len(steps))
	for _, s := range steps {
		if len(s.argv) == 0 {
			continue
		}
		if ctx.Err() != nil {
			outcomes = append(outcomes, PhaseOutcome{Phase: s.phase, Tool: s.argv[0], Limit: s.limit,
				Outcome: Outcome{Canceled: true, ExitCode: -1}})
			break
		}

		out, err := e.runner.Run(ctx, Command{
			Args:    s.argv,
			Dir:     ws.Dir,
			Timeout: s.limit,
			Image:   p.Image,
		})
		if err != nil && ctx.Err() != nil {
			// A backend that failed because the caller left is not a toolchain fault.
			out.Canceled = true
			out.ExitCode = -1
		}
		po := PhaseOutcome{Phase: s.phase, Tool: s.argv[0], Limit: s.limit, Outcome: out, Err: err}
		outcomes = append(outcomes, po)
		e.recorder.ObservePhase(p.ID, s.phase, out.Duration)

		logger.Debug("phase finished",
			slog.String("phase", string(s.phase)),
			slog.Int("exit_code", out.ExitCode),
			slog.Bool("timed_out", out.TimedOut),
			slog.Duration("duration", out.Duration),
		)

		if !po.Succeeded() {
			break
		}
	}
	return outcomes
}

func (e *Engine) internal(id, lang string, start time.Time) Result {
	return Result{
		ID:       id,
		Language: lang,
		Status:   StatusInternalError,
		Message:  fmt.Sprintf("internal error (ref %s)", id),
		ExitCode: -1,
		Duration: time.Since(start),
	}
}

// scrub hides the workspace location in user-visible text.
func scrub(msg, dir string) string {
	if msg == "" || dir == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, dir+string(filepath.Separator), "")
	return strings.ReplaceAll(msg, dir, ".")
}
