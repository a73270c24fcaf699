package task_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/task"
)

func newStore(t *testing.T) *task.Store {
	t.Helper()
	s, err := task.NewStore(task.StoreConfig{RunID: "test-run", Logger: log.Noop})
	require.NoError(t, err)
	return s
}

func TestStoreQueueFIFO(t *testing.T) {
	s := newStore(t)

	s.Enqueue(1, "echo a")
	s.Enqueue(2, "echo b")
	s.Enqueue(3, "echo c")

	for _, exp := range []task.Pending{{ID: 1, Command: "echo a"}, {ID: 2, Command: "echo b"}, {ID: 3, Command: "echo c"}} {
		got, ok := s.Dequeue()
		require.True(t, ok)
		assert.Equal(t, exp, got)
	}

	_, ok := s.Dequeue()
	assert.False(t, ok)
}

func TestStoreSubmitIDs(t *testing.T) {
	s := newStore(t)

	const submitters, perSubmitter = 10, 50
	var (
		mu  sync.Mutex
		ids = map[model.TaskID]bool{}
		wg  sync.WaitGroup
	)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSubmitter; j++ {
				id := s.Submit("true")
				mu.Lock()
				ids[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, ids, submitters*perSubmitter)
	for i := 1; i <= submitters*perSubmitter; i++ {
		assert.True(t, ids[model.TaskID(i)], "missing id %d", i)
	}
	assert.Len(t, s.Pending(), submitters*perSubmitter)
}

func TestStoreLifecycle(t *testing.T) {
	tests := map[string]struct {
		run    func(t *testing.T, s *task.Store)
		expErr error
	}{
		"Claiming a task should move it from the queue to the running-set.": {
			run: func(t *testing.T, s *task.Store) {
				id := s.Submit("echo hello")

				got, ok := s.Claim()
				require.True(t, ok)
				assert.Equal(t, id, got.ID)
				assert.Equal(t, "test-run", got.RunID)
				assert.Equal(t, model.TaskStatusRunning, got.Status)
				assert.False(t, got.StartedAt.IsZero())
				assert.Nil(t, got.FinishedAt)
				assert.Nil(t, got.Output)

				assert.Empty(t, s.Pending())
				running, ok := s.Running().Get(id)
				require.True(t, ok)
				assert.Equal(t, got, running)
			},
		},

		"Claiming on an empty queue should return nothing.": {
			run: func(t *testing.T, s *task.Store) {
				_, ok := s.Claim()
				assert.False(t, ok)
				assert.True(t, s.Idle())
			},
		},

		"Finishing a task should move it to the finished-set.": {
			run: func(t *testing.T, s *task.Store) {
				id := s.Submit("echo hello")
				claimed, _ := s.Claim()
				assert.False(t, s.Idle())

				out := model.Output{Stdout: []byte("hello\n"), Stderr: []byte{}}
				got, err := s.Finish(id, out)
				require.NoError(t, err)

				assert.Equal(t, model.TaskStatusFinished, got.Status)
				assert.Equal(t, claimed.StartedAt, got.StartedAt)
				assert.Equal(t, claimed.Command, got.Command)
				require.NotNil(t, got.FinishedAt)
				assert.False(t, got.FinishedAt.Before(got.StartedAt))
				assert.Equal(t, &out, got.Output)

				_, ok := s.Running().Get(id)
				assert.False(t, ok)
				finished, ok := s.Finished().Get(id)
				require.True(t, ok)
				assert.Equal(t, got, finished)
				assert.True(t, s.Idle())
			},
		},

		"Failing a task should move it to the failed-set.": {
			run: func(t *testing.T, s *task.Store) {
				id := s.Submit("nope")
				s.Claim()

				got, err := s.Fail(id, fmt.Errorf("%w: nope not found", model.ErrSpawn))
				require.NoError(t, err)
				assert.Equal(t, model.TaskStatusFailed, got.Status)
				assert.Equal(t, "could not spawn process: nope not found", got.Error)
				assert.Nil(t, got.Output)

				assert.Equal(t, 0, s.Running().Len())
				assert.Equal(t, 0, s.Finished().Len())
				assert.Equal(t, 1, s.Failed().Len())
			},
		},

		"Dropping a task should remove it from everywhere.": {
			run: func(t *testing.T, s *task.Store) {
				id := s.Submit("nope")
				s.Claim()

				assert.True(t, s.Drop(id))
				assert.False(t, s.Drop(id))

				snap := s.Snapshot()
				assert.Empty(t, snap.Queued)
				assert.Empty(t, snap.Running)
				assert.Empty(t, snap.Finished)
				assert.Empty(t, snap.Failed)
				_, err := s.Get(id)
				assert.True(t, errors.Is(err, model.ErrNotFound))
			},
		},

		"Finishing a task that is not running should fail.": {
			run: func(t *testing.T, s *task.Store) {
				id := s.Submit("echo hello")
				_, err := s.Finish(id, model.Output{})
				assert.True(t, errors.Is(err, model.ErrNotFound))
			},
		},

		"Getting a task should search every container.": {
			run: func(t *testing.T, s *task.Store) {
				id1 := s.Submit("echo 1")
				id2 := s.Submit("echo 2")
				id3 := s.Submit("echo 3")
				id4 := s.Submit("echo 4")
				s.Claim()
				s.Claim()
				s.Claim()
				_, err := s.Finish(id2, model.Output{})
				require.NoError(t, err)
				_, err = s.Fail(id3, model.ErrSpawn)
				require.NoError(t, err)

				for id, exp := range map[model.TaskID]model.TaskStatus{
					id1: model.TaskStatusRunning,
					id2: model.TaskStatusFinished,
					id3: model.TaskStatusFailed,
					id4: model.TaskStatusQueued,
				} {
					got, err := s.Get(id)
					require.NoError(t, err)
					assert.Equal(t, exp, got.Status)
				}
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test.run(t, newStore(t))
		})
	}
}

func TestStoreWait(t *testing.T) {
	s := newStore(t)

	select {
	case <-s.Wait():
		t.Fatal("unexpected wake up")
	default:
	}

	s.Submit("echo a")
	s.Submit("echo b")

	select {
	case <-s.Wait():
	default:
		t.Fatal("expected wake up")
	}
}

func TestStoreSetView(t *testing.T) {
	s := newStore(t)
	id := s.Submit("echo a")
	s.Claim()

	var got []model.TaskID
	s.Running().View(func(tasks map[model.TaskID]model.Task) {
		for id := range tasks {
			got = append(got, id)
		}
	})
	assert.Equal(t, []model.TaskID{id}, got)
}

// TestStoreSnapshotExclusive checks that while workers move tasks between
// containers, a snapshot never has a task in two containers or in none.
func TestStoreSnapshotExclusive(t *testing.T) {
	s := newStore(t)

	const total = 500
	for i := 0; i < total; i++ {
		s.Submit(fmt.Sprintf("echo %d", i))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				tk, ok := s.Claim()
				if !ok {
					return
				}
				if tk.ID%7 == 0 {
					_, _ = s.Fail(tk.ID, model.ErrSpawn)
					continue
				}
				_, _ = s.Finish(tk.ID, model.Output{})
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	check := func() {
		snap := s.Snapshot()
		seen := map[model.TaskID]int{}
		for _, tasks := range [][]model.Task{snap.Queued, snap.Running, snap.Finished, snap.Failed} {
			for _, tk := range tasks {
				seen[tk.ID]++
			}
		}
		require.Len(t, seen, total)
		for id, n := range seen {
			require.Equal(t, 1, n, "task %d seen %d times", id, n)
		}
	}

	for {
		select {
		case <-done:
			check()
			snap := s.Snapshot()
			assert.Empty(t, snap.Queued)
			assert.Empty(t, snap.Running)
			assert.Len(t, snap.Failed, total/7)
			assert.Len(t, snap.Finished, total-total/7)
			return
		default:
			check()
		}
	}
}
