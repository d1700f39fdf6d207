// Package config loads server settings from an optional YAML file and
// CODERUNNER_* environment variables, in that order of precedence (env wins).
//
//	server.port            CODERUNNER_SERVER_PORT
//	executor.backend       CODERUNNER_EXECUTOR_BACKEND
//	docker.pull_images     CODERUNNER_DOCKER_PULL_IMAGES (comma separated)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

const envPrefix = "CODERUNNER"

const (
	BackendLocal  = "local"
	BackendDocker = "docker"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	// DBPath is the history database. Empty disables history.
	DBPath       string `mapstructure:"db_path"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type ExecutorConfig struct {
	Backend        string        `mapstructure:"backend"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
	MaxSourceBytes int           `mapstructure:"max_source_bytes"`
	WorkspaceRoot  string        `mapstructure:"workspace_root"`
}

type DockerConfig struct {
	// Memory is a human size such as "256m" or "1g".
	Memory      string        `mapstructure:"memory"`
	CPUs        float64       `mapstructure:"cpus"`
	PidsLimit   int64         `mapstructure:"pids_limit"`
	User        string        `mapstructure:"user"`
	TmpfsSize   string        `mapstructure:"tmpfs_size"`
	PullImages  []string      `mapstructure:"pull_images"`
	PullTimeout time.Duration `mapstructure:"pull_timeout"`
}

// MemoryBytes parses Memory.
func (d DockerConfig) MemoryBytes() (int64, error) {
	return units.RAMInBytes(d.Memory)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives logs through a rotating writer in addition
	// to stderr.
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type AuthConfig struct {
	// JWTSecret enables bearer-token auth on /api when set.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// Load reads configuration. path names an explicit config file; when empty,
// coderunner.yaml is looked up in . and $HOME/.coderunner and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coderunner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.coderunner")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key needs a default: AutomaticEnv only reaches keys viper knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("storage.db_path", filepath.Join("data", "coderunner.db"))
	v.SetDefault("storage.history_limit", 10000)

	v.SetDefault("executor.backend", BackendLocal)
	v.SetDefault("executor.timeout", 10*time.Second)
	v.SetDefault("executor.probe_timeout", 3*time.Second)
	v.SetDefault("executor.max_output_bytes", 1<<20)
	v.SetDefault("executor.max_source_bytes", 100_000)
	v.SetDefault("executor.workspace_root", filepath.Join(os.TempDir(), "coderunner"))

	v.SetDefault("docker.memory", "256m")
	v.SetDefault("docker.cpus", 1.0)
	v.SetDefault("docker.pids_limit", 64)
	v.SetDefault("docker.user", "")
	v.SetDefault("docker.tmpfs_size", "64m")
	v.SetDefault("docker.pull_images", []string{})
	v.SetDefault("docker.pull_timeout", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)

	v.SetDefault("auth.jwt_secret", "")
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server read and write timeouts must be positive"))
	}

	switch c.Executor.Backend {
	case BackendLocal, BackendDocker:
	default:
		errs = append(errs, fmt.Errorf("executor.backend %q must be %q or %q", c.Executor.Backend, BackendLocal, BackendDocker))
	}
	if c.Executor.Timeout <= 0 || c.Executor.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("executor timeouts must be positive"))
	}
	// A response is written after probe, compile and run have all finished.
	if worst := c.Executor.ProbeTimeout + 2*c.Executor.Timeout; c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= worst {
		errs = append(errs, fmt.Errorf("server.write_timeout %s must exceed the longest execution (%s)", c.Server.WriteTimeout, worst))
	}
	if c.Executor.MaxOutputBytes <= 0 || c.Executor.MaxSourceBytes <= 0 {
		errs = append(errs, errors.New("executor size limits must be positive"))
	}

	if c.Executor.Backend == BackendDocker {
		if _, err := c.Docker.MemoryBytes(); err != nil {
			errs = append(errs, fmt.Errorf("docker.memory: %w", err))
		}
		if c.Docker.CPUs <= 0 {
			errs = append(errs, errors.New("docker.cpus must be positive"))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	if s := c.Auth.JWTSecret; s != "" && len(s) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
