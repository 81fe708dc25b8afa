package work

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	waitTimeout = 3 * time.Second
	waitTick    = 5 * time.Millisecond
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// jobArgs are the arguments of the "job" factory task used by the
// queue tests. Locks mirrors the lock set the job was enqueued with so
// the harness can detect overlapping runs.
type jobArgs struct {
	Name  string        `json:"name"`
	Locks []Lock        `json:"locks,omitempty"`
	Block bool          `json:"block,omitempty"`
	Sleep time.Duration `json:"sleep,omitempty"`
	Fail  bool          `json:"fail,omitempty"`
	Panic bool          `json:"panic,omitempty"`
}

// jobs observes the job tasks of one test.
type jobs struct {
	mu         sync.Mutex
	running    map[string][]Lock
	started    []string
	finished   []string
	gates      map[string]chan struct{}
	violations []string
	maxRunning int
}

func newJobs() *jobs {
	return &jobs{
		running: make(map[string][]Lock),
		gates:   make(map[string]chan struct{}),
	}
}

func (p *jobs) gate(name string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.gates[name]
	if !ok {
		ch = make(chan struct{})
		p.gates[name] = ch
	}
	return ch
}

// release lets a blocked job return.
func (p *jobs) release(name string) {
	close(p.gate(name))
}

func (p *jobs) enter(args jobArgs) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for other, locks := range p.running {
		if anyConflict(args.Locks, locks) {
			p.violations = append(p.violations, fmt.Sprintf("%s overlaps %s", args.Name, other))
		}
	}
	p.running[args.Name] = args.Locks
	p.started = append(p.started, args.Name)
	if len(p.running) > p.maxRunning {
		p.maxRunning = len(p.running)
	}
}

func (p *jobs) leave(args jobArgs) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, args.Name)
	p.finished = append(p.finished, args.Name)
}

func (p *jobs) hasStarted(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.started {
		if n == name {
			return true
		}
	}
	return false
}

func (p *jobs) startedCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, n := range p.started {
		if n == name {
			count++
		}
	}
	return count
}

func (p *jobs) snapshot() (started, finished, violations []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.started...),
		append([]string(nil), p.finished...),
		append([]string(nil), p.violations...)
}

func (p *jobs) task(args jobArgs) (Task, error) {
	if args.Name == "" {
		return nil, errors.New("job needs a name")
	}
	return TaskFunc(func(ctx context.Context) error {
		p.enter(args)
		defer p.leave(args)

		if args.Block {
			<-p.gate(args.Name)
		}
		if args.Sleep > 0 {
			time.Sleep(args.Sleep)
		}
		if args.Panic {
			panic("job " + args.Name + " panicked")
		}
		if args.Fail {
			return errors.New("job " + args.Name + " failed")
		}
		return nil
	}), nil
}

// testQueue bundles a queue with its store and jobs.
type testQueue struct {
	*Queue
	store    *MemoryStore
	registry *Registry
	jobs     *jobs
}

func newTestRegistry(p *jobs) *Registry {
	registry := NewRegistry()
	RegisterFactory(registry, "job", p.task)
	RegisterTask[*counterTask](registry, "counter")
	return registry
}

func newTestQueue(t *testing.T, workers int, opts ...Option) *testQueue {
	t.Helper()
	return newTestQueueWithStore(t, NewMemoryStore(), workers, opts...)
}

func newTestQueueWithStore(t *testing.T, store *MemoryStore, workers int, opts ...Option) *testQueue {
	t.Helper()
	return newTestQueueOn(t, store, store, workers, opts...)
}

// newTestQueueOn runs the queue on backend, which persists into mem.
func newTestQueueOn(t *testing.T, backend Store, mem *MemoryStore, workers int, opts ...Option) *testQueue {
	t.Helper()

	p := newJobs()
	registry := newTestRegistry(p)
	opts = append([]Option{WithMeterProvider(noop.NewMeterProvider())}, opts...)

	q, err := NewQueue(backend, registry, QueueConfig{Workers: workers}, setupTestLogger(), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		// unblock anything still waiting so workers can exit
		p.mu.Lock()
		for _, ch := range p.gates {
			select {
			case <-ch:
			default:
				close(ch)
			}
		}
		p.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = q.Close(ctx)
	})

	return &testQueue{Queue: q, store: mem, registry: registry, jobs: p}
}

// hookStore is a MemoryStore whose LoadAll calls afterLoad once the
// snapshot is taken. An error from afterLoad fails the load.
type hookStore struct {
	*MemoryStore
	afterLoad func() error
}

func (s *hookStore) LoadAll(ctx context.Context) ([]Record, error) {
	records, err := s.MemoryStore.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if s.afterLoad != nil {
		if err := s.afterLoad(); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// job enqueues a job task holding the given locks.
func (q *testQueue) job(t *testing.T, args jobArgs) {
	t.Helper()
	b := q.Append()
	for _, l := range args.Locks {
		b = b.LocksID(l.Resource, l.ID)
	}
	_, err := b.EnqueueType(context.Background(), "job", args)
	require.NoError(t, err)
}

func waitFor(t *testing.T, condition func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Eventually(t, condition, waitTimeout, waitTick, msgAndArgs...)
}

// counter is a collaborator that must be injected, never persisted.
type counter struct {
	mu    sync.Mutex
	total int
}

func (c *counter) add(n int) {
	c.mu.Lock()
	c.total += n
	c.mu.Unlock()
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// counterTask is a value task that adds Amount to the injected counter.
type counterTask struct {
	Amount int `json:"amount"`

	counter *counter
}

func (t *counterTask) Inject(deps *Dependencies) error {
	c, err := Resolve[*counter](deps)
	if err != nil {
		return err
	}
	t.counter = c
	return nil
}

func (t counterTask) Run(context.Context) error {
	if t.counter == nil {
		return errors.New("counter not injected")
	}
	t.counter.add(t.Amount)
	return nil
}
