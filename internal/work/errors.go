package work

import "errors"

// Common errors returned by the work queue
var (
	// ErrNonPersistableTask is returned synchronously by Enqueue when a payload
	// cannot be durably captured and reconstructed after a restart. It is a
	// programming error: collaborators must be requested through Inject rather
	// than captured by the task value.
	ErrNonPersistableTask = errors.New("task cannot be persisted")

	// ErrUnknownTaskType is returned when a payload refers to a task type that
	// is not registered.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrMissingDependency is returned by Resolve when no collaborator of the
	// requested type was provided.
	ErrMissingDependency = errors.New("dependency not provided")

	// ErrQueueClosed is returned when work is enqueued after Close.
	ErrQueueClosed = errors.New("work queue is closed")

	// ErrTaskPanicked wraps a panic raised by a task.
	ErrTaskPanicked = errors.New("task panicked")
)
