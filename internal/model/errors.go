package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrSpawn is returned when a command process could not be started.
	ErrSpawn = errors.New("could not spawn process")
	// ErrTaskFailed is returned when asking for the output of a task that failed to spawn.
	ErrTaskFailed = errors.New("task failed")
)
