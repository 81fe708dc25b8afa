package api

import (
	"encoding/json"

	"github.com/google/uuid"
)

// LockRequest names one resource lock. An empty ID locks every instance of
// the resource type.
type LockRequest struct {
	Resource string `json:"resource" validate:"required,max=128,printascii,excludesall=/"`
	ID       string `json:"id,omitempty" validate:"max=256"`
}

// EnqueueTaskRequest defines the payload of POST /api/v1/tasks.
type EnqueueTaskRequest struct {
	// Type is the name the task factory is registered under.
	Type string `json:"type" validate:"required,max=128"`

	// Args are the factory arguments, persisted verbatim.
	Args json.RawMessage `json:"args,omitempty"`

	Locks []LockRequest `json:"locks,omitempty" validate:"max=32,dive"`

	// RunAsAdmin requests administrator execution. Only administrators may
	// ask for it.
	RunAsAdmin bool `json:"run_as_admin,omitempty"`
}

// EnqueueTaskResponse is returned once the task is durably queued.
type EnqueueTaskResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Submitter string    `json:"submitter"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	QueueSize int    `json:"queue_size"`
}

// TaskTypesResponse lists the task types that can be enqueued by name.
type TaskTypesResponse struct {
	Types []string `json:"types"`
}
