package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/slok/cmdpool/internal/config"
	"github.com/slok/cmdpool/internal/conventions"
	"github.com/slok/cmdpool/internal/history"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/storage/memory"
	"github.com/slok/cmdpool/internal/storage/sqlite"
	"github.com/slok/cmdpool/internal/tracing"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug       bool
	NoLog       bool
	NoColor     bool
	LoggerType  string
	DataDir     string
	ConfigPath  string
	DBPath      string
	HistoryPath string
	NoArchive   bool
	NoHistory   bool

	TracingExporter    string
	TracingEndpoint    string
	TracingInsecure    bool
	TracingSampleRatio float64

	// Global instances.
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  log.Logger
	Version string
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("data-dir", "Directory for the cmdpool data.").Default(conventions.DataDir()).StringVar(&c.DataDir)
	app.Flag("config", "Path to the YAML configuration file (default: <data-dir>/config.yaml if present).").StringVar(&c.ConfigPath)
	app.Flag("db-path", "Path to the SQLite task archive (default: <data-dir>/cmdpool.db).").StringVar(&c.DBPath)
	app.Flag("history-path", "Path to the command history file (default: <data-dir>/history).").StringVar(&c.HistoryPath)
	app.Flag("no-archive", "Don't persist terminal tasks.").BoolVar(&c.NoArchive)
	app.Flag("no-history", "Don't record submitted commands.").BoolVar(&c.NoHistory)
	app.Flag("tracing-exporter", "Exporter for the task execution traces.").Default(tracing.ExporterNone).EnumVar(&c.TracingExporter, tracing.Exporters...)
	app.Flag("tracing-endpoint", "OTLP HTTP collector URL for the otlphttp tracing exporter.").Default("http://localhost:4318").StringVar(&c.TracingEndpoint)
	app.Flag("tracing-insecure", "Don't use TLS with the OTLP collector.").BoolVar(&c.TracingInsecure)
	app.Flag("tracing-sample-ratio", "Ratio of the task executions traced (0 to 1).").Default("1").Float64Var(&c.TracingSampleRatio)

	return c
}

// LoadConfig loads the configuration file. The default file is optional, an
// explicit one must exist. Global flags override the file values.
func (c *RootCommand) LoadConfig(ctx context.Context) (config.Config, error) {
	path := c.ConfigPath
	optional := path == ""
	if optional {
		path = conventions.ConfigPath(c.DataDir)
	}

	repo := config.NewYAMLRepository(os.DirFS(filepath.Dir(path)))
	cfg, err := repo.GetConfig(ctx, filepath.Base(path))
	if err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("could not load config %q: %w", path, err)
		}
		cfg = config.Default()
	} else {
		c.Logger.Debugf("Config loaded from %s", path)
	}

	if c.DBPath != "" {
		cfg.Archive.DBPath = c.DBPath
	}
	if cfg.Archive.DBPath == "" {
		cfg.Archive.DBPath = conventions.ArchiveDBPath(c.DataDir)
	}
	if c.NoArchive {
		cfg.Archive.Disabled = true
	}

	if c.HistoryPath != "" {
		cfg.History.Path = c.HistoryPath
	}
	if cfg.History.Path == "" {
		cfg.History.Path = conventions.HistoryPath(c.DataDir)
	}
	if c.NoHistory {
		cfg.History.Disabled = true
	}

	return cfg, nil
}

// NewArchive returns the task archive, an in-memory one when disabled.
func (c *RootCommand) NewArchive(ctx context.Context, cfg config.ArchiveConfig) (repo storage.TaskRepository, close func() error, err error) {
	if cfg.Disabled {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create memory repository: %w", err)
		}
		return repo, func() error { return nil }, nil
	}

	sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	return sqliteRepo, sqliteRepo.Close, nil
}

// NewHistory returns the command history, nil when disabled.
func (c *RootCommand) NewHistory(cfg config.HistoryConfig) (*history.File, error) {
	if cfg.Disabled {
		return nil, nil
	}

	h, err := history.NewFile(history.FileConfig{Path: cfg.Path, Logger: c.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create history: %w", err)
	}

	return h, nil
}

// openArchive returns the archive for the read only commands.
func (c *RootCommand) openArchive(ctx context.Context) (storage.TaskRepository, func() error, error) {
	cfg, err := c.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Archive.Disabled {
		return nil, nil, fmt.Errorf("the task archive is disabled")
	}

	return c.NewArchive(ctx, cfg.Archive)
}

// SetupTracing sets the tracer provider selected by the tracing flags. The stdout
// exporter writes to stderr so it doesn't mix with the printed results.
func (c *RootCommand) SetupTracing(ctx context.Context) (trace.TracerProvider, func(context.Context) error, error) {
	tp, shutdown, err := tracing.Setup(ctx, tracing.Config{
		Exporter:       c.TracingExporter,
		Endpoint:       c.TracingEndpoint,
		Insecure:       c.TracingInsecure,
		SampleRatio:    c.TracingSampleRatio,
		ServiceVersion: c.Version,
		Out:            c.Stderr,
		Logger:         c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not set up tracing: %w", err)
	}

	return tp, shutdown, nil
}
