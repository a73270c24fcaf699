package show_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/app/show"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage/storagemock"
	"github.com/slok/cmdpool/internal/task"
)

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		withStore bool
		req       show.Request
		mock      func(m *storagemock.MockTaskRepository)
		expTask   *model.Task
		expErr    bool
		expErrIs  error
	}{
		"A live queued task should be returned from the store.": {
			withStore: true,
			req:       show.Request{ID: 2},
			mock:      func(m *storagemock.MockTaskRepository) {},
			expTask:   &model.Task{ID: 2, RunID: "live", Command: "echo 2", Status: model.TaskStatusQueued},
		},
		"A task missing in the store should fall back to the archive of the live run.": {
			withStore: true,
			req:       show.Request{ID: 9},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("GetTask", mock.Anything, "live", model.TaskID(9)).Once().Return(&model.Task{ID: 9, RunID: "live"}, nil)
			},
			expTask: &model.Task{ID: 9, RunID: "live"},
		},
		"Other runs should be looked up in the archive.": {
			withStore: true,
			req:       show.Request{RunID: "old", ID: 1},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("GetTask", mock.Anything, "old", model.TaskID(1)).Once().Return(&model.Task{ID: 1, RunID: "old"}, nil)
			},
			expTask: &model.Task{ID: 1, RunID: "old"},
		},
		"Archive errors should be returned.": {
			req: show.Request{RunID: "old", ID: 1},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("GetTask", mock.Anything, "old", model.TaskID(1)).Once().Return(nil, model.ErrNotFound)
			},
			expErr:   true,
			expErrIs: model.ErrNotFound,
		},
		"Without store nor run ID it should not be found.": {
			req:      show.Request{ID: 1},
			mock:     func(m *storagemock.MockTaskRepository) {},
			expErr:   true,
			expErrIs: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockTaskRepository(t)
			test.mock(repo)

			cfg := show.ServiceConfig{Repository: repo}
			if test.withStore {
				store, err := task.NewStore(task.StoreConfig{RunID: "live"})
				require.NoError(t, err)
				store.Submit("echo 1")
				store.Submit("echo 2")
				cfg.Store = store
			}

			svc, err := show.NewService(cfg)
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)
			if test.expErr {
				require.Error(t, err)
				if test.expErrIs != nil {
					assert.True(t, errors.Is(err, test.expErrIs))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expTask, got)
		})
	}
}

func TestNewServiceRequiresSource(t *testing.T) {
	_, err := show.NewService(show.ServiceConfig{})
	assert.Error(t, err)
}
