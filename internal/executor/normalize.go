package executor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// maxMessageBytes bounds diagnostic text. The head is kept since compilers
// report the first error first.
const maxMessageBytes = 64 << 10

// PhaseOutcome is one phase's raw result as handed to Normalize.
type PhaseOutcome struct {
	Phase Phase
	// Tool is the program that was invoked (argv[0]).
	Tool string
	// Limit is the timeout the phase ran under.
	Limit   time.Duration
	Outcome Outcome
	// Err is set when the process produced no Outcome (see CommandRunner).
	Err error
}

// Succeeded reports whether the phase allows the next one to start.
func (p PhaseOutcome) Succeeded() bool {
	return p.Err == nil && !p.Outcome.TimedOut && !p.Outcome.Canceled && p.Outcome.ExitCode == 0
}

// Normalize maps the ordered phase outcomes of one execution to a Result.
// It is pure and total: the first unsuccessful phase in probe, compile, run
// order decides the status; if every phase succeeded the run phase's stdout
// is returned verbatim.
func Normalize(outcomes []PhaseOutcome) Result {
	ordered := make([]PhaseOutcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Phase.rank() < ordered[j].Phase.rank()
	})

	var (
		total     time.Duration
		truncated bool
	)
	for _, po := range ordered {
		total += po.Outcome.Duration
		truncated = truncated || po.Outcome.Truncated

		if !po.Succeeded() {
			res := classify(po)
			res.Duration = total
			res.Truncated = truncated
			return res
		}
		if po.Phase == PhaseRun {
			return Result{
				Status:    StatusSuccess,
				Phase:     PhaseRun,
				Stdout:    po.Outcome.Stdout,
				Duration:  total,
				Truncated: truncated,
			}
		}
	}

	return Result{
		Status:   StatusInternalError,
		Message:  "internal error: run phase did not execute",
		Duration: total,
		ExitCode: -1,
	}
}

// classify maps one failed phase to its status.
func classify(po PhaseOutcome) Result {
	res := Result{Phase: po.Phase, ExitCode: po.Outcome.ExitCode, Stdout: po.Outcome.Stdout}

	switch {
	case po.Outcome.Canceled:
		res.Status = StatusCanceled
		res.Message = "execution canceled"

	case po.Err != nil && errors.Is(po.Err, ErrLaunch):
		res.ExitCode = -1
		if isArtifact(po.Tool) {
			res.Status = StatusInternalError
			res.Message = "internal error: compiled program could not be started"
			return res
		}
		res.Status = StatusToolchainMissing
		res.Message = fmt.Sprintf("%s is not installed on the server", po.Tool)

	case po.Err != nil:
		res.ExitCode = -1
		res.Status = StatusInternalError
		res.Message = fmt.Sprintf("internal error during %s phase", po.Phase)

	case po.Phase == PhaseProbe:
		// A toolchain that cannot answer its own version check is unusable.
		res.Status = StatusToolchainMissing
		res.Stdout = ""
		if po.Outcome.TimedOut {
			res.Message = fmt.Sprintf("%s is not available on the server (probe timed out after %s)", po.Tool, po.Limit)
		} else {
			res.Message = fmt.Sprintf("%s is not available on the server (probe exited with status %d)", po.Tool, po.Outcome.ExitCode)
		}

	case po.Outcome.TimedOut:
		res.Status = StatusTimeout
		if po.Phase == PhaseCompile {
			res.Message = fmt.Sprintf("compilation timed out after %s", po.Limit)
		} else {
			res.Message = fmt.Sprintf("execution timed out after %s", po.Limit)
		}

	case po.Phase == PhaseCompile:
		res.Status = StatusCompileError
		res.Stdout = ""
		res.Message = diagnostic(po.Outcome)

	default:
		res.Status = StatusRuntimeError
		res.Message = diagnostic(po.Outcome)
	}
	return res
}

// diagnostic picks the tool's error text: stderr, or stdout for tools that
// report there (tsc), or a generic line when both are empty.
func diagnostic(o Outcome) string {
	msg := o.Stderr
	if strings.TrimSpace(msg) == "" {
		msg = o.Stdout
	}
	if strings.TrimSpace(msg) == "" {
		return fmt.Sprintf("process exited with status %d", o.ExitCode)
	}
	if len(msg) > maxMessageBytes {
		msg = msg[:maxMessageBytes] + "\n... (truncated)"
	}
	return msg
}

func isArtifact(tool string) bool {
	return strings.HasPrefix(tool, "./") || strings.HasPrefix(tool, "/")
}
