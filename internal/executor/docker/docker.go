// Package docker runs toolchain commands inside throwaway containers.
//
// Every Command gets a fresh container from the profile's image with the
// execution's workspace bind-mounted at /workspace. The container has no
// network, a read-only root filesystem, memory/CPU/PID limits and no
// capabilities, and is force-removed when the command ends however it ends.
// Nothing is reused between commands or executions.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/coderunner/internal/executor"
)

// workdir is where the workspace is mounted inside the container.
const workdir = "/workspace"

// Runner implements executor.CommandRunner using Docker.
type Runner struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
}

var _ executor.CommandRunner = (*Runner)(nil)

// New connects to the Docker daemon from the environment and pulls the
// configured images.
func New(cfg Config, logger *slog.Logger) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	r := &Runner{cli: cli, config: cfg, logger: logger}
	for _, ref := range cfg.PullImages {
		if err := r.pull(ref); err != nil {
			// A missing image is reported per execution as a missing toolchain.
			logger.Warn("failed to pull image", slog.String("image", ref), slog.String("error", err.Error()))
		}
	}
	return r, nil
}

// Close releases the docker client.
func (r *Runner) Close() error {
	return r.cli.Close()
}

func (r *Runner) pull(ref string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.PullTimeout)
	defer cancel()

	r.logger.Info("ensuring docker image is available", slog.String("image", ref))
	reader, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("reading pull progress: %w", err)
	}
	return nil
}

// Run executes cmd in a new container and waits for it, its timeout, or ctx.
func (r *Runner) Run(ctx context.Context, c executor.Command) (executor.Outcome, error) {
	if len(c.Args) == 0 {
		return executor.Outcome{}, errors.New("docker: empty command")
	}
	if c.Timeout <= 0 {
		return executor.Outcome{}, errors.New("docker: command timeout is required")
	}
	if ctx.Err() != nil {
		return executor.Outcome{Canceled: true, ExitCode: -1}, nil
	}
	if c.Image == "" {
		return executor.Outcome{}, fmt.Errorf("%w: no image configured for %s", executor.ErrLaunch, c.Args[0])
	}

	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cfg, hostCfg := r.containerConfig(c)
	resp, err := r.cli.ContainerCreate(runCtx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		if out, ok := interrupted(ctx, runCtx); ok {
			return out, nil
		}
		if client.IsErrNotFound(err) {
			return executor.Outcome{}, fmt.Errorf("%w: image %s: %v", executor.ErrLaunch, c.Image, err)
		}
		return executor.Outcome{}, fmt.Errorf("docker: creating container: %w", err)
	}
	containerID := resp.ID

	// Always remove the container, even when the caller is gone.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	// Attach before start so no early output is lost.
	attachResp, err := r.cli.ContainerAttach(runCtx, containerID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return executor.Outcome{}, fmt.Errorf("docker: attaching: %w", err)
	}
	defer attachResp.Close()

	stdout := executor.NewLimitedBuffer(r.config.MaxOutput)
	stderr := executor.NewLimitedBuffer(r.config.MaxOutput)
	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the attach stream into stdout and stderr
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	waitCh, waitErrCh := r.cli.ContainerWait(runCtx, containerID, container.WaitConditionNextExit)

	start := time.Now()
	if err := r.cli.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		if out, ok := interrupted(ctx, runCtx); ok {
			return out, nil
		}
		if isLaunchFailure(err) {
			return executor.Outcome{}, fmt.Errorf("%w: %s: %v", executor.ErrLaunch, c.Args[0], err)
		}
		return executor.Outcome{}, fmt.Errorf("docker: starting container: %w", err)
	}

	out := executor.Outcome{}
	select {
	case w := <-waitCh:
		out.ExitCode = int(w.StatusCode)
		if w.Error != nil && w.Error.Message != "" {
			return executor.Outcome{}, fmt.Errorf("docker: waiting: %s", w.Error.Message)
		}
		// Drain what the attach stream still has buffered.
		select {
		case <-done:
		case <-time.After(time.Second):
		}

	case err := <-waitErrCh:
		if runCtx.Err() == nil {
			return executor.Outcome{}, fmt.Errorf("docker: waiting: %w", err)
		}
		r.kill(containerID)
		out.ExitCode = -1

	case <-runCtx.Done():
		r.kill(containerID)
		out.ExitCode = -1
	}

	switch {
	case ctx.Err() != nil:
		out.Canceled = true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && out.ExitCode == -1:
		out.TimedOut = true
	}

	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	out.Truncated = stdout.Truncated() || stderr.Truncated()
	out.Duration = time.Since(start)
	return out, nil
}

// interrupted reports the outcome of a command whose daemon call failed
// because the caller went away or the phase deadline passed.
func interrupted(ctx, runCtx context.Context) (executor.Outcome, bool) {
	switch {
	case ctx.Err() != nil:
		return executor.Outcome{Canceled: true, ExitCode: -1}, true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return executor.Outcome{TimedOut: true, ExitCode: -1}, true
	}
	return executor.Outcome{}, false
}

// containerConfig builds the sandbox definition for one command.
func (r *Runner) containerConfig(c executor.Command) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:           c.Image,
		Cmd:             c.Args,
		WorkingDir:      workdir,
		User:            r.config.User,
		Env:             []string{"HOME=/tmp"},
		Tty:             false,
		OpenStdin:       false,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}

	hostCfg := &container.HostConfig{
		Binds:          []string{c.Dir + ":" + workdir},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,exec,size=" + r.config.TmpfsSize},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		AutoRemove:     false,
		Resources: container.Resources{
			Memory:     r.config.MemoryLimit,
			MemorySwap: r.config.MemoryLimit,
			NanoCPUs:   int64(r.config.CPULimit * 1e9),
		},
	}
	if r.config.PidsLimit > 0 {
		pids := r.config.PidsLimit
		hostCfg.Resources.PidsLimit = &pids
	}
	return cfg, hostCfg
}

// kill stops a container whose deadline passed. Removal happens in Run's
// deferred cleanup.
func (r *Runner) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.cli.ContainerKill(ctx, id, "KILL"); err != nil && !client.IsErrNotFound(err) {
		r.logger.Warn("failed to kill container", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// isLaunchFailure recognises the daemon's "the command does not exist"
// errors, which surface at start rather than create.
func isLaunchFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory") ||
		strings.Contains(msg, "permission denied")
}
