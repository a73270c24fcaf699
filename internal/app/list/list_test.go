package list_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/app/list"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/storage/storagemock"
	"github.com/slok/cmdpool/internal/task"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config list.ServiceConfig
		expErr bool
	}{
		"A store should be enough.": {
			config: list.ServiceConfig{Store: newStore(t), Logger: log.Noop},
		},
		"A repository should be enough.": {
			config: list.ServiceConfig{Repository: &storagemock.MockTaskRepository{}},
		},
		"Missing store and repository should fail.": {
			config: list.ServiceConfig{Logger: log.Noop},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := list.NewService(test.config)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newStore(t *testing.T) *task.Store {
	t.Helper()
	s, err := task.NewStore(task.StoreConfig{RunID: "live"})
	require.NoError(t, err)
	return s
}

// populateStore leaves the store with 1 finished, 2 failed, 3 running and 4, 5 queued.
func populateStore(t *testing.T, s *task.Store) {
	t.Helper()
	for i := 1; i <= 5; i++ {
		s.Submit(fmt.Sprintf("echo %d", i))
	}
	for i := 0; i < 3; i++ {
		_, ok := s.Claim()
		require.True(t, ok)
	}
	_, err := s.Finish(1, model.Output{Stdout: []byte("1\n")})
	require.NoError(t, err)
	_, err = s.Fail(2, errors.New("boom"))
	require.NoError(t, err)
}

func ids(ts []model.Task) []model.TaskID {
	res := make([]model.TaskID, 0, len(ts))
	for _, t := range ts {
		res = append(res, t.ID)
	}
	return res
}

func TestServiceRunLive(t *testing.T) {
	running := model.TaskStatusRunning
	queued := model.TaskStatusQueued
	failed := model.TaskStatusFailed

	tests := map[string]struct {
		req    list.Request
		expIDs []model.TaskID
		expErr bool
	}{
		"Without filters it should list all the tasks ordered by ID.": {
			req:    list.Request{},
			expIDs: []model.TaskID{1, 2, 3, 4, 5},
		},
		"Filtering by running should return only the running ones.": {
			req:    list.Request{StatusFilter: &running},
			expIDs: []model.TaskID{3},
		},
		"Filtering by queued should return only the queued ones.": {
			req:    list.Request{StatusFilter: &queued},
			expIDs: []model.TaskID{4, 5},
		},
		"Filtering by failed should return only the failed ones.": {
			req:    list.Request{StatusFilter: &failed},
			expIDs: []model.TaskID{2},
		},
		"Limit should cut the list.": {
			req:    list.Request{Limit: 2},
			expIDs: []model.TaskID{1, 2},
		},
		"Selecting the live run ID should use the store.": {
			req:    list.Request{RunID: "live"},
			expIDs: []model.TaskID{1, 2, 3, 4, 5},
		},
		"A negative limit should fail.": {
			req:    list.Request{Limit: -1},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			populateStore(t, store)

			svc, err := list.NewService(list.ServiceConfig{Store: store})
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expIDs, ids(got))
		})
	}
}

func TestServiceRunArchived(t *testing.T) {
	finished := model.TaskStatusFinished

	tests := map[string]struct {
		withStore bool
		req       list.Request
		mock      func(m *storagemock.MockTaskRepository)
		expIDs    []model.TaskID
		expErr    error
	}{
		"Listing another run should use the repository keeping its order.": {
			withStore: true,
			req:       list.Request{RunID: "old", StatusFilter: &finished, Limit: 10},
			mock: func(m *storagemock.MockTaskRepository) {
				exp := storage.ListTasksOpts{RunID: "old", Status: &finished, Limit: 10}
				m.On("ListTasks", mock.Anything, exp).Once().Return([]model.Task{{ID: 7}, {ID: 3}}, nil)
			},
			expIDs: []model.TaskID{7, 3},
		},
		"Without store every run should come from the repository.": {
			req: list.Request{},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("ListTasks", mock.Anything, storage.ListTasksOpts{}).Once().Return([]model.Task{{ID: 1}}, nil)
			},
			expIDs: []model.TaskID{1},
		},
		"Repository errors should be returned.": {
			req: list.Request{RunID: "old"},
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("ListTasks", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("something"))
			},
			expErr: errors.New("could not list tasks: something"),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockTaskRepository(t)
			test.mock(repo)

			cfg := list.ServiceConfig{Repository: repo}
			if test.withStore {
				cfg.Store = newStore(t)
			}
			svc, err := list.NewService(cfg)
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)
			if test.expErr != nil {
				assert.EqualError(t, err, test.expErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expIDs, ids(got))
		})
	}
}

func TestServiceRunUnknownRunWithoutRepository(t *testing.T) {
	svc, err := list.NewService(list.ServiceConfig{Store: newStore(t)})
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), list.Request{RunID: "other"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
