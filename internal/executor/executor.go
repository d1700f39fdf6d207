// Package executor turns source text plus a language id into a classified
// Result.
//
// The pieces fit together like this:
//
//	language.Registry  → resolves the toolchain Profile
//	workspace.Manager  → stages the source in a private directory
//	CommandRunner      → runs probe / compile / run, each with a timeout
//	Normalize          → maps the phase outcomes to exactly one Status
//
// Engine.Execute never returns an error. Every failure, including faults in
// the engine itself, comes back as a Result with a terminal Status.
package executor

import (
	"context"
	"errors"
	"time"
)

// Status is the terminal classification of an execution.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusCompileError     Status = "compile_error"
	StatusRuntimeError     Status = "runtime_error"
	StatusToolchainMissing Status = "toolchain_missing"
	StatusTimeout          Status = "timeout"
	StatusInternalError    Status = "internal_error"
	StatusNotSupported     Status = "not_supported"
	// StatusCanceled means the caller went away (client disconnect) and the
	// child processes were killed before the timeout elapsed.
	StatusCanceled Status = "canceled"
)

// Phase is one step of an execution.
type Phase string

const (
	PhaseProbe   Phase = "probe"
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

func (p Phase) rank() int {
	switch p {
	case PhaseProbe:
		return 0
	case PhaseCompile:
		return 1
	default:
		return 2
	}
}

// Request is one call into the engine.
type Request struct {
	Source   string `json:"code"`
	Language string `json:"language"`
	// Filename is the caller's declared file name. Only its base name is
	// used, and only by name-sensitive toolchains.
	Filename string `json:"filename,omitempty"`
}

// Result is the outcome of one execution. It is a value: build it once,
// never mutate it.
type Result struct {
	ID       string        `json:"id,omitempty"`
	Language string        `json:"language"`
	Status   Status        `json:"status"`
	Phase    Phase         `json:"phase,omitempty"`
	Stdout   string        `json:"stdout,omitempty"`
	Message  string        `json:"message,omitempty"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	// Truncated is set when a stream exceeded the output cap.
	Truncated bool `json:"truncated,omitempty"`
}

// OK reports whether the program ran to a zero exit.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Executor is what the service and CLI layers depend on.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

// Command is one process invocation. Args are evaluated with Dir as the
// working directory; Timeout must be positive.
type Command struct {
	Args    []string
	Dir     string
	Timeout time.Duration
	// Image is the container image for backends that need one.
	Image string
}

// Outcome is what one process invocation produced.
type Outcome struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Canceled  bool
	Truncated bool
	Duration  time.Duration
}

// ErrLaunch wraps failures to start a process at all: missing binary,
// missing image, not executable.
var ErrLaunch = errors.New("process failed to launch")

// CommandRunner runs a single Command to completion or timeout.
//
// Implementations must capture stdout and stderr separately, never attach
// stdin, and kill everything the command spawned when the timeout or ctx
// fires. A returned error means no meaningful Outcome exists; launch
// failures wrap ErrLaunch.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Outcome, error)
}

// Recorder receives execution telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObservePhase(language string, phase Phase, d time.Duration)
	ObserveResult(language string, status Status, d time.Duration)
	InFlight(delta int)
}

type nopRecorder struct{}

func (nopRecorder) ObservePhase(string, Phase, time.Duration)   {}
func (nopRecorder) ObserveResult(string, Status, time.Duration) {}
func (nopRecorder) InFlight(int)                                {}
