package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/work"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	waitTimeout = 3 * time.Second
	waitTick    = 5 * time.Millisecond
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoArgs are the arguments of the "echo" task used by the handler tests.
type echoArgs struct {
	Message string `json:"message"`
	Hold    bool   `json:"hold,omitempty"`
}

// echoRun is what an echo task observed when it ran.
type echoRun struct {
	Message string
	Subject security.Subject
}

// recorder collects echo runs and holds tasks that ask to be held.
type recorder struct {
	mu   sync.Mutex
	runs []echoRun
	hold chan struct{}
}

func (r *recorder) snapshot() []echoRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]echoRun(nil), r.runs...)
}

type testEnv struct {
	queue    *work.Queue
	store    *work.MemoryStore
	registry *work.Registry
	rec      *recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rec := &recorder{hold: make(chan struct{})}
	registry := work.NewRegistry()
	work.RegisterFactory(registry, "echo", func(args echoArgs) (work.Task, error) {
		if args.Message == "" {
			return nil, errors.New("message is required")
		}
		return work.TaskFunc(func(ctx context.Context) error {
			if args.Hold {
				<-rec.hold
			}
			rec.mu.Lock()
			rec.runs = append(rec.runs, echoRun{Message: args.Message, Subject: security.CurrentSubject(ctx)})
			rec.mu.Unlock()
			return nil
		}), nil
	})
	work.RegisterFactory(registry, "noop", func(struct{}) (work.Task, error) {
		return work.TaskFunc(func(context.Context) error { return nil }), nil
	})

	store := work.NewMemoryStore()
	q, err := work.NewQueue(store, registry, work.QueueConfig{Workers: 2}, setupTestLogger(),
		work.WithMeterProvider(noop.NewMeterProvider()))
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))

	var once sync.Once
	release := func() { once.Do(func() { close(rec.hold) }) }
	t.Cleanup(func() {
		release()
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = q.Close(ctx)
	})

	return &testEnv{queue: q, store: store, registry: registry, rec: rec}
}

// postJSON sends body to handler as subject. A zero subject sends the
// request without one.
func postJSON(t *testing.T, handler http.HandlerFunc, subject security.Subject, body any) *httptest.ResponseRecorder {
	t.Helper()

	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if subject.Name != "" {
		req = req.WithContext(security.WithSubject(req.Context(), subject))
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}
