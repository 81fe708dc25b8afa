package work

import (
	"context"
	"encoding/json"
)

// Task is a unit of background work. Tasks are fire-and-forget: the returned
// error is logged and marks the envelope failed, it is never handed back to
// the submitter.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to the Task interface. A TaskFunc cannot be
// persisted, so it can only be produced by a registered factory.
type TaskFunc func(ctx context.Context) error

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Injectable is implemented by tasks that need collaborators which must not
// be persisted with the task, such as services or connections. The worker
// pool calls Inject right before Run, both for fresh and recovered tasks.
type Injectable interface {
	Inject(deps *Dependencies) error
}

// Identifiable is implemented by domain entities that can be locked by id.
type Identifiable interface {
	LockID() string
}

// PayloadKind distinguishes the two persistable payload variants.
type PayloadKind string

const (
	// PayloadValue is a registered task value stored as JSON.
	PayloadValue PayloadKind = "value"

	// PayloadFactory is a registered factory name plus its JSON arguments.
	PayloadFactory PayloadKind = "factory"
)

// Payload is the durable description of a task.
type Payload struct {
	Kind PayloadKind     `json:"kind"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (p Payload) clone() Payload {
	if p.Data != nil {
		p.Data = append(json.RawMessage(nil), p.Data...)
	}
	return p
}
