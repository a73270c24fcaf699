package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/storage/sqlite"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 600, time.Local)

func finishedFixture(runID string, id model.TaskID, offset time.Duration) model.Task {
	start := t0.Add(offset)
	end := start.Add(1500 * time.Millisecond)
	return model.Task{
		ID:         id,
		RunID:      runID,
		Command:    "echo hello",
		Status:     model.TaskStatusFinished,
		StartedAt:  start,
		FinishedAt: &end,
		Output: &model.Output{
			ExitCode: 0,
			Stdout:   []byte("hello\n"),
			Stderr:   []byte("warn\n"),
		},
	}
}

func failedFixture(runID string, id model.TaskID, offset time.Duration) model.Task {
	start := t0.Add(offset)
	return model.Task{
		ID:         id,
		RunID:      runID,
		Command:    "nope",
		Status:     model.TaskStatusFailed,
		StartedAt:  start,
		FinishedAt: &start,
		Error:      "could not spawn process: not found",
	}
}

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "data", "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	fin := finishedFixture("run1", 1, 0)
	fail := failedFixture("run1", 2, time.Second)
	require.NoError(t, repo.SaveTask(ctx, fin))
	require.NoError(t, repo.SaveTask(ctx, fail))

	got, err := repo.GetTask(ctx, "run1", 1)
	require.NoError(t, err)
	assert.Equal(t, fin, *got)
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
	assert.Equal(t, time.Local, got.StartedAt.Location())
	assert.Equal(t, time.Local, got.FinishedAt.Location())

	got, err = repo.GetTask(ctx, "run1", 2)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Nil(t, got.Output)
	assert.Equal(t, "could not spawn process: not found", got.Error)

	_, err = repo.GetTask(ctx, "run2", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRepositorySaveConstraints(t *testing.T) {
	tests := map[string]struct {
		task     model.Task
		expErrIs error
	}{
		"Saving a duplicated task should fail.": {
			task:     finishedFixture("run1", 1, 0),
			expErrIs: model.ErrAlreadyExists,
		},
		"Same task ID on a different run should be saved.": {
			task: finishedFixture("run2", 1, 0),
		},
		"Saving a running task should fail.": {
			task:     model.Task{ID: 5, RunID: "run1", Status: model.TaskStatusRunning},
			expErrIs: model.ErrNotValid,
		},
		"Saving a task without run should fail.": {
			task:     finishedFixture("", 5, 0),
			expErrIs: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			require.NoError(t, repo.SaveTask(ctx, finishedFixture("run1", 1, 0)))

			err := repo.SaveTask(ctx, test.task)
			if test.expErrIs != nil {
				assert.ErrorIs(t, err, test.expErrIs)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepositoryTruncatedOutput(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	task := finishedFixture("run1", 1, 0)
	task.Output.ExitCode = 2
	task.Output.Truncated = true
	require.NoError(t, repo.SaveTask(ctx, task))

	got, err := repo.GetTask(ctx, "run1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Output.ExitCode)
	assert.True(t, got.Output.Truncated)
}

func TestRepositoryListTasks(t *testing.T) {
	failed := model.TaskStatusFailed

	tests := map[string]struct {
		opts   storage.ListTasksOpts
		expIDs []string
	}{
		"Without filters it should list every task, most recent first.": {
			opts:   storage.ListTasksOpts{},
			expIDs: []string{"run2/2", "run2/1", "run1/3", "run1/2", "run1/1"},
		},
		"Filtering by run should return only its tasks.": {
			opts:   storage.ListTasksOpts{RunID: "run1"},
			expIDs: []string{"run1/3", "run1/2", "run1/1"},
		},
		"Filtering by status should return only failed tasks.": {
			opts:   storage.ListTasksOpts{Status: &failed},
			expIDs: []string{"run2/2", "run1/2"},
		},
		"Limit should return the most recent ones.": {
			opts:   storage.ListTasksOpts{Limit: 2},
			expIDs: []string{"run2/2", "run2/1"},
		},
		"Combining filters should apply all of them.": {
			opts:   storage.ListTasksOpts{RunID: "run1", Status: &failed, Limit: 5},
			expIDs: []string{"run1/2"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			for _, task := range []model.Task{
				finishedFixture("run1", 1, 0),
				failedFixture("run1", 2, 10*time.Second),
				finishedFixture("run1", 3, 20*time.Second),
				finishedFixture("run2", 1, time.Minute),
				failedFixture("run2", 2, 2*time.Minute),
			} {
				require.NoError(t, repo.SaveTask(ctx, task))
			}

			tasks, err := repo.ListTasks(ctx, test.opts)
			require.NoError(t, err)

			got := []string{}
			for _, tk := range tasks {
				got = append(got, tk.RunID+"/"+tk.ID.String())
			}
			assert.Equal(t, test.expIDs, got)
		})
	}
}

func TestRepositoryListRuns(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, task := range []model.Task{
		finishedFixture("01A", 1, 0),
		failedFixture("01A", 2, 0),
		finishedFixture("01A", 3, 0),
		finishedFixture("01B", 1, 0),
	} {
		require.NoError(t, repo.SaveTask(ctx, task))
	}

	runs, err = repo.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.Run{
		{ID: "01B", Tasks: 1, Finished: 1, Failed: 0},
		{ID: "01A", Tasks: 3, Finished: 2, Failed: 1},
	}, runs)
}

func TestRepositoryReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTask(ctx, finishedFixture("run1", 1, 0)))
	require.NoError(t, repo.Close())

	repo, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.GetTask(ctx, "run1", 1)
	assert.NoError(t, err)
}
