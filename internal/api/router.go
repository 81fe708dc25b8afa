package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/workqueue/internal/api/middleware"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/work"
)

// NewRouter creates the HTTP handler of the service.
func NewRouter(
	queue WorkQueue,
	registry *work.Registry,
	tokens security.TokenService,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	tasks := NewTaskHandler(queue, registry)
	auth := apiMiddleware.NewAuthMiddleware(tokens)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Get("/task-types", tasks.ListTaskTypes)
		r.Post("/tasks", tasks.EnqueueTask)
	})

	r.Get("/health", tasks.Health)

	return r
}
