package output_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/app/output"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage/storagemock"
	"github.com/slok/cmdpool/internal/task"
)

// newStore returns a store with 1 finished, 2 failed, 3 running and 4 queued.
func newStore(t *testing.T) *task.Store {
	t.Helper()

	store, err := task.NewStore(task.StoreConfig{RunID: "live"})
	require.NoError(t, err)
	for _, c := range []string{"echo hi", "nope", "sleep 1", "echo later"} {
		store.Submit(c)
	}
	for i := 0; i < 3; i++ {
		_, ok := store.Claim()
		require.True(t, ok)
	}
	_, err = store.Finish(1, model.Output{ExitCode: 0, Stdout: []byte("hi\n")})
	require.NoError(t, err)
	_, err = store.Fail(2, errors.New("exec: \"nope\": executable file not found in $PATH"))
	require.NoError(t, err)

	return store
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		req       output.Request
		mock      func(m *storagemock.MockTaskRepository)
		expOutput *model.Output
		expErrIs  error
	}{
		"A finished task should return its output.": {
			req:       output.Request{ID: 1},
			mock:      func(m *storagemock.MockTaskRepository) {},
			expOutput: &model.Output{ExitCode: 0, Stdout: []byte("hi\n")},
		},
		"A failed task should return a task failed error.": {
			req:      output.Request{ID: 2},
			mock:     func(m *storagemock.MockTaskRepository) {},
			expErrIs: model.ErrTaskFailed,
		},
		"A running task should not be found.": {
			req:      output.Request{ID: 3},
			mock:     func(m *storagemock.MockTaskRepository) {},
			expErrIs: model.ErrNotFound,
		},
		"A queued task should not be found.": {
			req:      output.Request{ID: 4},
			mock:     func(m *storagemock.MockTaskRepository) {},
			expErrIs: model.ErrNotFound,
		},
		"An unknown task should not be found.": {
			req: output.Request{ID: 42},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("GetTask", mock.Anything, "live", model.TaskID(42)).Once().Return(nil, model.ErrNotFound)
			},
			expErrIs: model.ErrNotFound,
		},
		"An archived finished task should return its output.": {
			req: output.Request{RunID: "old", ID: 1},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("GetTask", mock.Anything, "old", model.TaskID(1)).Once().Return(&model.Task{
					ID:     1,
					Status: model.TaskStatusFinished,
					Output: &model.Output{ExitCode: 3, Stderr: []byte("bad")},
				}, nil)
			},
			expOutput: &model.Output{ExitCode: 3, Stderr: []byte("bad")},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockTaskRepository(t)
			test.mock(repo)

			svc, err := output.NewService(output.ServiceConfig{Store: newStore(t), Repository: repo})
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)
			if test.expErrIs != nil {
				assert.ErrorIs(t, err, test.expErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expOutput, got)
		})
	}
}

func TestServiceRunIsIdempotent(t *testing.T) {
	store := newStore(t)
	svc, err := output.NewService(output.ServiceConfig{Store: store})
	require.NoError(t, err)

	first, err := svc.Run(context.Background(), output.Request{ID: 1})
	require.NoError(t, err)

	// Mutating the returned output must not affect the stored one.
	first.Stdout[0] = 'X'

	second, err := svc.Run(context.Background(), output.Request{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("hi\n"), second.Stdout)

	_, ok := store.Finished().Get(1)
	assert.True(t, ok)
}
