package docker

import (
	"time"
)

// Config holds the sandbox limits applied to every container.
type Config struct {
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// PidsLimit caps the process count inside a container (fork bombs).
	PidsLimit int64
	// User runs the command as this user. Empty keeps the image default,
	// which must be able to write to the bind-mounted workspace.
	User string
	// TmpfsSize bounds the writable /tmp (the root filesystem is read-only).
	TmpfsSize string
	// MaxOutput caps each captured stream.
	MaxOutput int
	// PullImages are pulled when the runner starts.
	PullImages []string
	// PullTimeout bounds each image pull.
	PullTimeout time.Duration
}

// DefaultConfig provides conservative limits for untrusted code.
func DefaultConfig() Config {
	return Config{
		// 256 MB memory limit; compilers need more than interpreters
		MemoryLimit: 256 * 1024 * 1024,
		// 1 CPU
		CPULimit:    1,
		PidsLimit:   64,
		TmpfsSize:   "64m",
		PullTimeout: 5 * time.Minute,
	}
}
