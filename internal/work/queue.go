package work

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workqueue/internal/security"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// QueueConfig holds configuration for the work queue
type QueueConfig struct {
	// Workers determines how many tasks run concurrently
	Workers int
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Workers: DefaultWorkerPoolConfig().WorkerCount,
	}
}

// Option configures a Queue.
type Option func(*Queue)

// WithDependencies sets the collaborators handed to Injectable tasks.
func WithDependencies(deps *Dependencies) Option {
	return func(q *Queue) { q.deps = deps }
}

// WithElevator sets how run-as-admin tasks are elevated.
func WithElevator(elevator security.Elevator) Option {
	return func(q *Queue) { q.elevator = elevator }
}

// WithMeterProvider sets the provider for queue metrics. The global
// provider is used by default.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(q *Queue) { q.meterProvider = provider }
}

// WithClock overrides the time source used for enqueue timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is the central work queue. It persists every submitted task,
// admits it once its locks are free, and runs it on the worker pool.
// Unfinished tasks are replayed by Recover after a restart.
type Queue struct {
	store         Store
	registry      *Registry
	deps          *Dependencies
	elevator      security.Elevator
	meterProvider metric.MeterProvider
	now           func() time.Time
	logger        *slog.Logger

	coordinator *coordinator
	pool        *WorkerPool
	metrics     *queueMetrics

	seq  atomic.Int64
	size atomic.Int64

	// recoverMu is held exclusively by Recover. Fresh submissions and
	// finishing envelopes hold it shared, so the store snapshot Recover
	// works from cannot go stale under it.
	recoverMu sync.RWMutex

	mu         sync.RWMutex
	closed     bool
	errHandler func(env *Envelope, err error)
}

// NewQueue creates a work queue. Workers do not run until Start.
func NewQueue(store Store, registry *Registry, config QueueConfig, logger *slog.Logger, opts ...Option) (*Queue, error) {
	q := &Queue{
		store:       store,
		registry:    registry,
		now:         time.Now,
		logger:      logger.With("component", "work_queue"),
		coordinator: newCoordinator(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.deps == nil {
		q.deps = NewDependencies()
	}
	if q.elevator == nil {
		q.elevator = security.NewAdministrationContext(logger)
	}
	if q.meterProvider == nil {
		q.meterProvider = otel.GetMeterProvider()
	}

	metrics, err := newQueueMetrics(q.meterProvider, q.size.Load)
	if err != nil {
		return nil, err
	}
	q.metrics = metrics

	q.pool = NewWorkerPool(
		WorkerPoolConfig{WorkerCount: config.Workers},
		q.deps,
		q.elevator,
		q.finish,
		q.logger,
	)
	q.pool.metrics = metrics

	return q, nil
}

// SetErrorHandler sets a function called for every failed task, after it
// was logged.
func (q *Queue) SetErrorHandler(handler func(env *Envelope, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errHandler = handler
}

// Append starts building a new submission.
func (q *Queue) Append() *Enqueue {
	return &Enqueue{queue: q}
}

// Size returns the number of pending and running tasks. After Close it
// includes admitted tasks that no worker picked up; they stay in the store
// for the next start.
func (q *Queue) Size() int {
	return int(q.size.Load())
}

// Start launches the workers and recovers unfinished tasks from the store.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	q.pool.Start()
	if err := q.Recover(ctx); err != nil {
		if stopErr := q.pool.Stop(ctx); stopErr != nil {
			q.logger.Error("failed to stop workers after recovery error", "error", stopErr)
		}
		return fmt.Errorf("failed to recover tasks: %w", err)
	}
	return nil
}

// Close stops accepting tasks and waits for running tasks to return.
// Tasks that did not start yet stay in the store for the next start.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.logger.Info("closing work queue", "size", q.Size())
	return q.pool.Stop(ctx)
}

// Recover loads unfinished envelopes from the store and submits them
// again in their original order. Envelopes that are already known are
// skipped, so calling Recover repeatedly is safe. Records whose payload
// cannot be decoded are logged and left in the store. New submissions and
// finishing tasks wait until Recover returns.
func (q *Queue) Recover(ctx context.Context) error {
	q.recoverMu.Lock()
	defer q.recoverMu.Unlock()

	records, err := q.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load envelopes: %w", err)
	}
	SortRecords(records)

	var restored, skipped, failed int
	for _, rec := range records {
		q.bumpSeq(rec.Seq)

		if q.coordinator.isKnown(rec.ID) {
			skipped++
			continue
		}

		log := q.logger.With("task_id", rec.ID, "task_type", rec.Payload.Type, "seq", rec.Seq)

		task, err := q.registry.Decode(rec.Payload)
		if err != nil {
			log.Error("failed to restore task, leaving it in the store", "error", err)
			failed++
			continue
		}

		env := envelopeFromRecord(rec, task)
		if err := q.submit(ctx, env); err != nil {
			if errors.Is(err, errAlreadyKnown) {
				skipped++
				continue
			}
			return fmt.Errorf("failed to resubmit task %s: %w", rec.ID, err)
		}
		log.Debug("restored task", "restore_count", env.restoreCount)
		restored++
	}

	q.logger.Info("recovered unfinished tasks",
		"restored_count", restored,
		"skipped_count", skipped,
		"failed_count", failed)
	return nil
}

var errAlreadyKnown = errors.New("envelope already known")

// submitNew builds an envelope for a fresh submission and submits it.
func (q *Queue) submitNew(
	ctx context.Context,
	locks []Lock,
	runAsAdmin bool,
	payload Payload,
	task Task,
) (uuid.UUID, error) {
	q.recoverMu.RLock()
	defer q.recoverMu.RUnlock()

	env := newEnvelope(
		uuid.New(),
		q.seq.Add(1),
		locks,
		runAsAdmin,
		security.CurrentSubject(ctx),
		payload,
		task,
		q.now().UTC(),
	)
	if err := q.submit(ctx, env); err != nil {
		return uuid.Nil, err
	}

	q.logger.Debug("task enqueued",
		"task_id", env.id,
		"task_type", payload.Type,
		"locks", env.locks,
		"blocked", env.Blocked())
	return env.id, nil
}

// submit persists env and offers it to the coordinator.
func (q *Queue) submit(ctx context.Context, env *Envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	if err := q.store.Append(ctx, env.Record()); err != nil {
		return fmt.Errorf("failed to persist task: %w", err)
	}

	q.size.Add(1)
	admitted, ok := q.coordinator.offer(env)
	if !ok {
		q.size.Add(-1)
		return errAlreadyKnown
	}
	q.start(admitted)
	return nil
}

// start hands admitted envelopes to the pool. They turn Running when a
// worker picks them up.
func (q *Queue) start(admitted []*Envelope) {
	q.pool.dispatch(admitted...)
}

// finish is called by the pool after a task returned. The envelope stays
// counted by Size until the error handler returned.
func (q *Queue) finish(env *Envelope, err error) {
	q.recoverMu.RLock()
	env.markFinished(q.now(), err)

	admitted := q.coordinator.release(env)

	if rmErr := q.store.Remove(context.Background(), env.id); rmErr != nil {
		q.logger.Error("failed to remove finished task from store",
			"task_id", env.id,
			"error", rmErr)
	}

	q.start(admitted)
	q.recoverMu.RUnlock()

	if err != nil {
		q.mu.RLock()
		handler := q.errHandler
		q.mu.RUnlock()
		if handler != nil {
			handler(env, err)
		}
	}

	q.size.Add(-1)
}

// bumpSeq raises the sequence counter to at least seq.
func (q *Queue) bumpSeq(seq int64) {
	for {
		cur := q.seq.Load()
		if cur >= seq || q.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
