package config

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/slok/cmdpool/internal/model"
)

const (
	DefaultWorkers        = 10
	DefaultPollInterval   = 10 * time.Millisecond
	DefaultMaxOutputBytes = 16 * 1024 * 1024
	DefaultListen         = ":8080"
)

// Config is the cmdpool configuration file.
type Config struct {
	Workers        int           `yaml:"workers" validate:"gte=0"`
	PollInterval   time.Duration `yaml:"poll_interval" validate:"gte=0"`
	MaxOutputBytes int64         `yaml:"max_output_bytes" validate:"gte=0"`
	// KeepFailed records tasks whose process could not be spawned in the failed-set,
	// otherwise they are dropped.
	KeepFailed bool          `yaml:"keep_failed"`
	Runner     RunnerConfig  `yaml:"runner"`
	API        APIConfig     `yaml:"api"`
	History    HistoryConfig `yaml:"history"`
	Archive    ArchiveConfig `yaml:"archive"`
}

// RunnerConfig selects where commands are executed, local by default.
type RunnerConfig struct {
	Local  *LocalRunnerConfig  `yaml:"local,omitempty" validate:"omitempty,excluded_with=Docker"`
	Docker *DockerRunnerConfig `yaml:"docker,omitempty" validate:"omitempty"`
}

// LocalRunnerConfig configures the processes spawned on the host.
type LocalRunnerConfig struct {
	Env     map[string]string `yaml:"env" validate:"omitempty,dive,keys,required,endkeys"`
	WorkDir string            `yaml:"workdir"`
}

// DockerRunnerConfig configures the processes executed inside a running container.
type DockerRunnerConfig struct {
	Container string            `yaml:"container" validate:"required"`
	Env       map[string]string `yaml:"env" validate:"omitempty,dive,keys,required,endkeys"`
	WorkDir   string            `yaml:"workdir"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
	// TokenSecret enables bearer token authentication, tokens are created with `cmdpool token`.
	TokenSecret string `yaml:"token_secret" validate:"omitempty,min=32"`
}

// HistoryConfig configures the command history file.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// ArchiveConfig configures the terminal task archive.
type ArchiveConfig struct {
	DBPath   string `yaml:"db_path"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Workers:        DefaultWorkers,
		PollInterval:   DefaultPollInterval,
		MaxOutputBytes: DefaultMaxOutputBytes,
		KeepFailed:     true,
		API:            APIConfig{Listen: DefaultListen},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// YAMLRepository loads cmdpool configuration from YAML files.
type YAMLRepository struct {
	fs fs.FS
}

// NewYAMLRepository creates a new YAML config repository.
func NewYAMLRepository(filesystem fs.FS) *YAMLRepository {
	return &YAMLRepository{fs: filesystem}
}

// GetConfig loads a configuration file on top of the defaults and validates it.
func (r *YAMLRepository) GetConfig(ctx context.Context, path string) (Config, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return Config{}, ctx.Err()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w: %w", model.ErrNotValid, err)
	}

	return cfg, nil
}
