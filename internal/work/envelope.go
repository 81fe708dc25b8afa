package work

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workqueue/internal/security"
)

// State represents the lifecycle state of an envelope
type State string

// Possible envelope states
const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// IsTerminal reports whether no further transition can happen from s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Envelope wraps a submitted task with everything needed to schedule it,
// run it under the right identity, and rebuild it after a restart.
type Envelope struct {
	id           uuid.UUID
	seq          int64
	locks        []Lock
	runAsAdmin   bool
	submitter    security.Subject
	payload      Payload
	enqueuedAt   time.Time
	restoreCount int

	// task is the materialized payload. It is never persisted.
	task Task

	mu         sync.Mutex
	state      State
	blocked    bool
	startedAt  time.Time
	finishedAt time.Time
	err        error
}

func newEnvelope(
	id uuid.UUID,
	seq int64,
	locks []Lock,
	runAsAdmin bool,
	submitter security.Subject,
	payload Payload,
	task Task,
	enqueuedAt time.Time,
) *Envelope {
	return &Envelope{
		id:         id,
		seq:        seq,
		locks:      normalizeLocks(locks),
		runAsAdmin: runAsAdmin,
		submitter:  submitter,
		payload:    payload,
		task:       task,
		enqueuedAt: enqueuedAt,
		state:      StatePending,
	}
}

// ID returns the envelope's unique identifier
func (e *Envelope) ID() uuid.UUID { return e.id }

// Seq returns the enqueue sequence number used for FIFO ordering
func (e *Envelope) Seq() int64 { return e.seq }

// Locks returns a copy of the normalized lock set
func (e *Envelope) Locks() []Lock { return slices.Clone(e.locks) }

// RunAsAdmin reports whether the task runs with elevated rights
func (e *Envelope) RunAsAdmin() bool { return e.runAsAdmin }

// Submitter returns the identity captured at enqueue time
func (e *Envelope) Submitter() security.Subject { return e.submitter }

// Payload returns the durable task description
func (e *Envelope) Payload() Payload { return e.payload.clone() }

// EnqueuedAt returns the time the task was first submitted
func (e *Envelope) EnqueuedAt() time.Time { return e.enqueuedAt }

// RestoreCount returns how many times the envelope was recovered after a restart
func (e *Envelope) RestoreCount() int { return e.restoreCount }

// State returns the current lifecycle state
func (e *Envelope) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Blocked reports whether the envelope ever had to wait for a lock
func (e *Envelope) Blocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocked
}

// Err returns the failure of a Failed envelope
func (e *Envelope) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Envelope) markBlocked() {
	e.mu.Lock()
	e.blocked = true
	e.mu.Unlock()
}

// markStarted is called by the worker that runs the envelope.
func (e *Envelope) markStarted(now time.Time) {
	e.mu.Lock()
	e.state = StateRunning
	e.startedAt = now
	e.mu.Unlock()
}

func (e *Envelope) markFinished(now time.Time, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishedAt = now
	e.err = err
	if err != nil {
		e.state = StateFailed
		return
	}
	e.state = StateDone
}

// waitDuration is the time between submission and start of execution.
// Recovered envelopes measure from their original enqueue time.
func (e *Envelope) waitDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startedAt.Sub(e.enqueuedAt)
}

// Record returns the persisted form of the envelope
func (e *Envelope) Record() Record {
	return Record{
		ID:           e.id,
		Seq:          e.seq,
		Locks:        slices.Clone(e.locks),
		RunAsAdmin:   e.runAsAdmin,
		Submitter:    e.submitter,
		Payload:      e.payload.clone(),
		EnqueuedAt:   e.enqueuedAt,
		RestoreCount: e.restoreCount,
	}
}

// Record is the durable representation of a non-terminal envelope.
type Record struct {
	ID           uuid.UUID        `json:"id"`
	Seq          int64            `json:"seq"`
	Locks        []Lock           `json:"locks"`
	RunAsAdmin   bool             `json:"run_as_admin"`
	Submitter    security.Subject `json:"submitter"`
	Payload      Payload          `json:"payload"`
	EnqueuedAt   time.Time        `json:"enqueued_at"`
	RestoreCount int              `json:"restore_count"`
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	r.Locks = slices.Clone(r.Locks)
	r.Submitter.Roles = slices.Clone(r.Submitter.Roles)
	r.Payload = r.Payload.clone()
	return r
}

// envelopeFromRecord rebuilds an envelope for recovery, counting the restore.
func envelopeFromRecord(rec Record, task Task) *Envelope {
	env := newEnvelope(rec.ID, rec.Seq, rec.Locks, rec.RunAsAdmin, rec.Submitter, rec.Payload, task, rec.EnqueuedAt)
	env.restoreCount = rec.RestoreCount + 1
	return env
}
