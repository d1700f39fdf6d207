// Package local runs toolchain commands as host processes.
//
// Each command gets its own process group. When the phase timeout or the
// caller's context fires, the whole group is SIGKILLed, so a compiler's
// subprocesses or a program's forked children die with it. The group is
// killed again after a normal exit to catch anything left in the background.
//
// This backend bounds wall-clock time only. Use the docker backend when
// memory, CPU, process count or network must be limited too.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sakif/coderunner/internal/executor"
)

// waitDelay is how long Wait keeps draining output after the process was
// killed or exited while orphans still hold its pipes.
const waitDelay = 2 * time.Second

// passthroughEnv names the server variables a child may see. Everything
// else, configuration secrets included, stays with the server.
var passthroughEnv = []string{"PATH", "LANG", "LC_ALL", "TZ", "JAVA_HOME"}

// DefaultEnv returns the child environment used when Options.Env is nil.
// HOME is added per command and points at the workspace.
func DefaultEnv() []string {
	env := make([]string, 0, len(passthroughEnv))
	for _, key := range passthroughEnv {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// Runner implements executor.CommandRunner with os/exec.
type Runner struct {
	maxOutput int
	env       []string
}

var _ executor.CommandRunner = (*Runner)(nil)

// Options configures a Runner.
type Options struct {
	// MaxOutput caps each of stdout and stderr. Zero means executor.DefaultMaxOutput.
	MaxOutput int
	// Env is the child environment. Nil means DefaultEnv; the server's own
	// environment is never inherited.
	Env []string
}

// New returns a host-process Runner.
func New(opts Options) *Runner {
	env := opts.Env
	if env == nil {
		env = DefaultEnv()
	}
	return &Runner{maxOutput: opts.MaxOutput, env: env}
}

// Run executes cmd and waits for it, its timeout, or ctx, whichever is first.
func (r *Runner) Run(ctx context.Context, c executor.Command) (executor.Outcome, error) {
	if len(c.Args) == 0 {
		return executor.Outcome{}, errors.New("local: empty command")
	}
	if c.Timeout <= 0 {
		return executor.Outcome{}, errors.New("local: command timeout is required")
	}

	if ctx.Err() != nil {
		return canceled(), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	stdout := executor.NewLimitedBuffer(r.maxOutput)
	stderr := executor.NewLimitedBuffer(r.maxOutput)

	cmd := exec.CommandContext(runCtx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = withHome(r.env, c.Dir)
	cmd.Stdin = nil // the null device
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return canceled(), nil
		}
		return executor.Outcome{}, fmt.Errorf("%w: %s: %v", executor.ErrLaunch, c.Args[0], err)
	}
	waitErr := cmd.Wait()
	killProcessGroup(cmd)

	out := executor.Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		out.Canceled = true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.TimedOut = true
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr), errors.Is(waitErr, exec.ErrWaitDelay):
			// Exit status already captured from ProcessState.
		case out.TimedOut || out.Canceled:
		default:
			return out, fmt.Errorf("local: waiting for %s: %w", c.Args[0], waitErr)
		}
	}

	// Killed by a signal: ExitCode reports -1. Keep it non-zero and stable.
	if out.ExitCode < 0 && !out.TimedOut && !out.Canceled {
		out.ExitCode = signalExitCode(cmd)
	}
	return out, nil
}

func canceled() executor.Outcome {
	return executor.Outcome{Canceled: true, ExitCode: -1}
}

// withHome returns env with HOME set to dir, replacing any existing HOME.
func withHome(env []string, dir string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, "HOME=") {
			out = append(out, kv)
		}
	}
	if dir != "" {
		out = append(out, "HOME="+dir)
	}
	return out
}
