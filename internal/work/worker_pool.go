package work

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/workqueue/internal/platform/logger"
	"github.com/phrazzld/workqueue/internal/security"
	"golang.org/x/sync/errgroup"
)

// WorkerNamePrefix prefixes the name each worker logs under.
const WorkerNamePrefix = "CentralWorkQueue"

// WorkerPool runs admitted envelopes on a fixed number of goroutines.
// Dispatch never blocks: admitted envelopes wait in an unbounded list
// until a worker is free.
type WorkerPool struct {
	// workerCount is the number of concurrent workers to start
	workerCount int

	// deps is handed to Injectable tasks before they run
	deps *Dependencies

	// elevator builds the context for run-as-admin envelopes
	elevator security.Elevator

	// report is called once per envelope after it ran
	report func(env *Envelope, err error)

	// metrics records wait and execution durations, may be nil
	metrics *queueMetrics

	// logger for structured logging
	logger *slog.Logger

	mu      sync.Mutex
	pending []*Envelope
	wake    chan struct{}
	running bool

	// ctx is cancelled by Stop, it never reaches tasks
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 4,
	}
}

// NewWorkerPool creates a worker pool. report receives every envelope
// after its task returned.
func NewWorkerPool(
	config WorkerPoolConfig,
	deps *Dependencies,
	elevator security.Elevator,
	report func(env *Envelope, err error),
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool{
		workerCount: workerCount,
		deps:        deps,
		elevator:    elevator,
		report:      report,
		logger:      logger,
		wake:        make(chan struct{}, 1),
	}
}

// Start launches the workers. Calling Start on a running pool is a no-op.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.group, p.ctx = errgroup.WithContext(ctx)
	p.cancel = cancel

	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 1; i <= p.workerCount; i++ {
		name := fmt.Sprintf("%s-%d", WorkerNamePrefix, i)
		ctx := p.ctx
		p.group.Go(func() error {
			return p.worker(ctx, name)
		})
	}

	// envelopes dispatched before Start are waiting already
	if len(p.pending) > 0 {
		p.signal()
	}
}

// Stop signals the workers to exit and waits for running tasks to return.
// Envelopes that were dispatched but not started stay undone.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	group, cancel := p.group, p.cancel
	p.mu.Unlock()

	p.logger.Info("stopping worker pool")
	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		p.logger.Info("worker pool stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("worker pool did not stop in time: %w", ctx.Err())
	}
}

// dispatch hands admitted envelopes to the workers.
func (p *WorkerPool) dispatch(envs ...*Envelope) {
	if len(envs) == 0 {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, envs...)
	p.mu.Unlock()
	p.signal()
}

// Pending returns the number of dispatched envelopes waiting for a worker.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *WorkerPool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *WorkerPool) next() (*Envelope, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil, false
	}
	env := p.pending[0]
	p.pending[0] = nil
	p.pending = p.pending[1:]
	if len(p.pending) > 0 {
		p.signal()
	}
	return env, true
}

// worker processes dispatched envelopes until the pool stops
func (p *WorkerPool) worker(ctx context.Context, name string) error {
	log := p.logger.With("worker_id", name)
	log.Debug("starting worker")

	for {
		if ctx.Err() != nil {
			log.Debug("stopping worker")
			return nil
		}

		if env, ok := p.next(); ok {
			p.execute(env, name)
			continue
		}

		select {
		case <-ctx.Done():
			log.Debug("stopping worker")
			return nil
		case <-p.wake:
		}
	}
}

// execute runs a single envelope and reports the outcome
func (p *WorkerPool) execute(env *Envelope, workerName string) {
	log := p.logger.With(
		"task_id", env.id,
		"task_type", env.payload.Type,
		"worker_id", workerName,
		"submitter", env.submitter.Name,
		"run_as_admin", env.runAsAdmin,
	)

	// Tasks cannot be cancelled once admitted, so the context is detached
	// from the pool's lifetime.
	ctx := logger.WithContext(context.Background(), log)
	ctx = security.WithSubject(ctx, env.submitter)
	if env.runAsAdmin {
		ctx = p.elevator.Elevate(ctx)
	}

	start := time.Now()
	env.markStarted(start)
	if p.metrics != nil {
		p.metrics.recordWait(env)
	}

	log.Info("processing task", "restore_count", env.restoreCount)
	err := p.invoke(ctx, env)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("task execution failed", "error", err, "duration", elapsed)
	} else {
		log.Info("task completed successfully", "duration", elapsed)
	}

	if p.metrics != nil {
		p.metrics.recordExecution(env, elapsed, err)
	}
	p.report(env, err)
}

// invoke injects dependencies and runs the task, converting a panic
// into an error.
func (p *WorkerPool) invoke(ctx context.Context, env *Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	if injectable, ok := env.task.(Injectable); ok {
		if err := injectable.Inject(p.deps); err != nil {
			return fmt.Errorf("failed to inject dependencies: %w", err)
		}
	}

	return env.task.Run(ctx)
}
