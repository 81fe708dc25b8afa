package work

import (
	"context"

	"github.com/google/uuid"
)

// Enqueue collects the lock set and execution mode of a task before it is
// submitted. It has no side effects until Enqueue or EnqueueType is called.
//
//	id, err := q.Append().
//		LocksID("repository", repo.ID).
//		RunAsAdmin().
//		EnqueueType(ctx, "reindex", ReindexArgs{Repository: repo.ID})
type Enqueue struct {
	queue      *Queue
	locks      []Lock
	runAsAdmin bool
}

// Locks requests a type-level lock on resource.
func (e *Enqueue) Locks(resource string) *Enqueue {
	e.locks = append(e.locks, TypeLock(resource))
	return e
}

// LocksID requests a lock on a single instance of resource. An empty id
// locks the whole resource type.
func (e *Enqueue) LocksID(resource, id string) *Enqueue {
	e.locks = append(e.locks, InstanceLock(resource, id))
	return e
}

// LocksEntity requests a lock on the instance identified by entity. A nil
// entity locks the whole resource type.
func (e *Enqueue) LocksEntity(resource string, entity Identifiable) *Enqueue {
	if entity == nil {
		return e.Locks(resource)
	}
	return e.LocksID(resource, entity.LockID())
}

// RunAsAdmin runs the task with administrator rights instead of the
// submitter's.
func (e *Enqueue) RunAsAdmin() *Enqueue {
	e.runAsAdmin = true
	return e
}

// Enqueue submits a registered task value. It returns once the envelope is
// durably stored, without waiting for execution. Tasks that cannot be
// persisted are rejected with ErrNonPersistableTask and nothing is stored.
func (e *Enqueue) Enqueue(ctx context.Context, task Task) (uuid.UUID, error) {
	payload, restored, err := e.queue.registry.encodeValue(task)
	if err != nil {
		return uuid.Nil, err
	}
	return e.queue.submitNew(ctx, e.locks, e.runAsAdmin, payload, restored)
}

// EnqueueType submits a task built by the factory registered under name.
// args may be nil for factories that take no arguments.
func (e *Enqueue) EnqueueType(ctx context.Context, name string, args any) (uuid.UUID, error) {
	payload, task, err := e.queue.registry.encodeFactory(name, args)
	if err != nil {
		return uuid.Nil, err
	}
	return e.queue.submitNew(ctx, e.locks, e.runAsAdmin, payload, task)
}
