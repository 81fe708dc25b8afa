package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/phrazzld/workqueue/internal/api/shared"
	"github.com/phrazzld/workqueue/internal/platform/logger"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/work"
)

// WorkQueue is the part of the queue the HTTP surface needs.
type WorkQueue interface {
	Append() *work.Enqueue
	Size() int
}

// TaskHandler handles task submission requests.
type TaskHandler struct {
	queue    WorkQueue
	registry *work.Registry
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(queue WorkQueue, registry *work.Registry) *TaskHandler {
	return &TaskHandler{queue: queue, registry: registry}
}

// EnqueueTask handles POST /api/v1/tasks. It answers 202 once the task is
// persisted; execution happens later on a queue worker.
func (h *TaskHandler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectFromRequest(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Authentication required", errMissingSubject)
		return
	}

	var req EnqueueTaskRequest
	if !parseAndValidateRequest(w, r, &req) {
		return
	}

	if req.RunAsAdmin {
		if err := security.CheckAdmin(r.Context()); err != nil {
			handleAPIError(w, r, fmt.Errorf("%s requested admin execution: %w", subject.Name, err),
				"Only administrators may run tasks as admin")
			return
		}
	}

	if !h.registry.HasFactory(req.Type) {
		handleAPIError(w, r, fmt.Errorf("%w: %q", work.ErrUnknownTaskType, req.Type), "")
		return
	}

	b := h.queue.Append()
	for _, l := range req.Locks {
		b.LocksID(l.Resource, l.ID)
	}
	if req.RunAsAdmin {
		b.RunAsAdmin()
	}

	var args any
	if trimmed := bytes.TrimSpace(req.Args); len(trimmed) > 0 {
		args = json.RawMessage(trimmed)
	}

	id, err := b.EnqueueType(r.Context(), req.Type, args)
	if err != nil {
		handleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).Info("task accepted",
		"task_id", id,
		"task_type", req.Type,
		"submitter", subject.Name,
		"run_as_admin", req.RunAsAdmin)

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueTaskResponse{
		ID:        id,
		Type:      req.Type,
		Submitter: subject.Name,
	})
}

// ListTaskTypes handles GET /api/v1/task-types.
func (h *TaskHandler) ListTaskTypes(w http.ResponseWriter, r *http.Request) {
	types := []string{}
	for _, name := range h.registry.Names() {
		if h.registry.HasFactory(name) {
			types = append(types, name)
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskTypesResponse{Types: types})
}

// Health handles GET /health.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		QueueSize: h.queue.Size(),
	})
}
