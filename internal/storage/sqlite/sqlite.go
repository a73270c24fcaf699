package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.TaskRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.TaskRepository = &Repository{}

// NewRepository creates a new SQLite repository and applies the pending migrations.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s (schema version %d)", cfg.DBPath, version)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const taskColumns = `
	run_id, task_id, command, status,
	started_at, finished_at,
	exit_code, stdout, stderr, truncated,
	error
`

// SaveTask archives a terminal task.
func (r *Repository) SaveTask(ctx context.Context, t model.Task) error {
	if !t.Status.Terminal() {
		return fmt.Errorf("task %d is %q, only terminal tasks can be archived: %w", t.ID, t.Status, model.ErrNotValid)
	}
	if t.RunID == "" {
		return fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	finishedAt := t.StartedAt
	if t.FinishedAt != nil {
		finishedAt = *t.FinishedAt
	}

	var exitCode *int
	var stdout, stderr []byte
	truncated := false
	if t.Output != nil {
		exitCode = &t.Output.ExitCode
		stdout = t.Output.Stdout
		stderr = t.Output.Stderr
		truncated = t.Output.Truncated
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		t.RunID,
		int64(t.ID),
		t.Command,
		string(t.Status),
		t.StartedAt.UnixNano(),
		finishedAt.UnixNano(),
		exitCode,
		stdout,
		stderr,
		truncated,
		t.Error,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task %s/%d already archived: %w", t.RunID, t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Archived task %s/%d", t.RunID, t.ID)
	return nil
}

// GetTask retrieves an archived task.
func (r *Repository) GetTask(ctx context.Context, runID string, id model.TaskID) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE run_id = ? AND task_id = ?`

	t, err := scanRow(r.db.QueryRowContext(ctx, query, runID, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s/%d: %w", runID, id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &t, nil
}

// ListTasks returns the archived tasks, most recently finished first.
func (r *Repository) ListTasks(ctx context.Context, opts storage.ListTasksOpts) ([]model.Task, error) {
	var where []string
	var args []any
	if opts.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*opts.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY finished_at DESC, task_id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// ListRuns returns a summary for every archived run, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]storage.Run, error) {
	query := `
		SELECT
			run_id,
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM tasks
		GROUP BY run_id
		ORDER BY run_id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(model.TaskStatusFinished), string(model.TaskStatusFailed))
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.Run
	for rows.Next() {
		var run storage.Run
		if err := rows.Scan(&run.ID, &run.Tasks, &run.Finished, &run.Failed); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (model.Task, error) {
	var t model.Task
	var id int64
	var status string
	var startedAt, finishedAt int64
	var exitCode sql.NullInt64
	var stdout, stderr []byte
	var truncated bool

	err := s.Scan(
		&t.RunID,
		&id,
		&t.Command,
		&status,
		&startedAt,
		&finishedAt,
		&exitCode,
		&stdout,
		&stderr,
		&truncated,
		&t.Error,
	)
	if err != nil {
		return model.Task{}, err
	}

	t.ID = model.TaskID(id)
	t.Status = model.TaskStatus(status)
	t.StartedAt = timeFromUnixNano(startedAt)
	ft := timeFromUnixNano(finishedAt)
	t.FinishedAt = &ft

	if exitCode.Valid {
		t.Output = &model.Output{
			ExitCode:  int(exitCode.Int64),
			Stdout:    stdout,
			Stderr:    stderr,
			Truncated: truncated,
		}
	}

	return t, nil
}

// Archived times come back in local time, like the live records.
func timeFromUnixNano(n int64) time.Time { return time.Unix(0, n).Local() }
