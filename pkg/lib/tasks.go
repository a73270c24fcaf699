package lib

import (
	"context"
	"sort"

	"github.com/slok/cmdpool/internal/app/output"
	"github.com/slok/cmdpool/internal/app/show"
	"github.com/slok/cmdpool/internal/app/submit"
	"github.com/slok/cmdpool/internal/model"
)

// Submit enqueues a command line and returns its task ID without waiting for its
// execution. The command is not validated: a malformed command ends as a failed
// task.
func (p *Pool) Submit(ctx context.Context, command string) (TaskID, error) {
	id, err := p.submitSvc.Run(ctx, submit.Request{Command: command})
	if err != nil {
		return 0, mapError(err)
	}
	return TaskID(id), nil
}

// Queued returns the tasks waiting for a worker, in execution order.
func (p *Pool) Queued() []Task {
	return fromInternalTaskList(p.store.Pending())
}

// Running returns the tasks being executed, ordered by ID.
func (p *Pool) Running() []Task {
	return fromInternalTaskList(p.store.Running().Snapshot())
}

// Finished returns the tasks whose process ended, ordered by ID.
func (p *Pool) Finished() []Task {
	return fromInternalTaskList(p.store.Finished().Snapshot())
}

// Failed returns the tasks whose process could not be spawned, ordered by ID.
func (p *Pool) Failed() []Task {
	return fromInternalTaskList(p.store.Failed().Snapshot())
}

// Tasks returns every task of the pool ordered by ID, from a single consistent
// view (a task never shows up twice nor goes missing).
func (p *Pool) Tasks() []Task {
	snap := p.store.Snapshot()

	all := make([]model.Task, 0, len(snap.Queued)+len(snap.Running)+len(snap.Finished)+len(snap.Failed))
	all = append(all, snap.Queued...)
	all = append(all, snap.Running...)
	all = append(all, snap.Finished...)
	all = append(all, snap.Failed...)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return fromInternalTaskList(all)
}

// Task returns a task of this pool.
//
// Returns [ErrNotFound] if the task does not exist.
func (p *Pool) Task(ctx context.Context, id TaskID) (*Task, error) {
	t, err := p.showSvc.Run(ctx, show.Request{ID: model.TaskID(id)})
	if err != nil {
		return nil, mapError(err)
	}

	task := fromInternalTask(*t)
	return &task, nil
}

// Output returns a copy of the captured output of a finished task. It can be
// called any number of times.
//
// Returns [ErrNotFound] if the task does not exist or it has not finished yet,
// and [ErrTaskFailed] if its process could not be spawned.
func (p *Pool) Output(ctx context.Context, id TaskID) (*Output, error) {
	out, err := p.outputSvc.Run(ctx, output.Request{ID: model.TaskID(id)})
	if err != nil {
		return nil, mapError(err)
	}

	res := fromInternalOutput(*out)
	return &res, nil
}
