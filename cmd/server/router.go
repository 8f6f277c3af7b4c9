package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/songforge/agent-api/internal/api"
	apiMiddleware "github.com/songforge/agent-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Standard middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	healthHandler := api.NewHealthHandler(app.taskService)

	// JSON-RPC endpoint: tasks/send, tasks/sendSubscribe, tasks/get,
	// tasks/cancel, tasks/pushNotification/set and /get.
	r.Post("/rpc", taskHandler.HandleRPC)

	// REST mirror of the task surface.
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", taskHandler.ListTasks)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", taskHandler.GetTask)
			r.Get("/history", taskHandler.GetTaskHistory)
			r.Get("/notifications", taskHandler.StreamTaskNotifications)
			r.Post("/notifications", taskHandler.RegisterTaskWebhook)
		})
	})

	r.Get("/health", healthHandler.Health)

	return r
}
