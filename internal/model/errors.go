package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrCancelled is returned when an operation stopped early because the
	// cooperative stop signal was set. It is an outcome, not a failure.
	ErrCancelled = errors.New("cancelled")
	// ErrBusy is returned when an operation is rejected because the current
	// launcher state (running task, open modal, process state) forbids it.
	ErrBusy = errors.New("busy")
	// ErrStartup is returned when the managed process exits right after being spawned.
	ErrStartup = errors.New("startup failed")
)
