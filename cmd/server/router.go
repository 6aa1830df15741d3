package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasknotify/internal/api"
	apiMiddleware "github.com/phrazzld/tasknotify/internal/api/middleware"
	"github.com/phrazzld/tasknotify/internal/service/auth"
)

// setupRouter creates the router with every route and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	notifications := api.NewNotificationHandler(app.inbox, app.hub, app.logger)
	preferences := api.NewPreferenceHandler(app.preferences, app.logger)
	workflows := api.NewWorkflowHandler(app.workflows, app.logger)
	admin := api.NewAdminHandler(app.queue, app.scanner, app.logger)
	activity := api.NewActivityHandler(app.eventEmitter, app.taskStore, app.workflows, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.List)
			r.Get("/unread-count", notifications.UnreadCount)
			r.Get("/stream", notifications.Stream)
			r.Post("/read-all", notifications.MarkAllRead)
			r.Post("/{id}/read", notifications.MarkRead)
			r.Delete("/{id}", notifications.Delete)
		})

		r.Get("/preferences", preferences.Get)
		r.Patch("/preferences", preferences.Update)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", workflows.List)
			r.Get("/default", workflows.GetDefault)
			r.Get("/{id}", workflows.Get)
			r.Post("/{id}/validate-transition", workflows.ValidateTransition)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.RequireRole(auth.RoleAdmin))
				r.Post("/", workflows.Create)
				r.Put("/{id}", workflows.Update)
				r.Delete("/{id}", workflows.Delete)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiMiddleware.RequireRole(auth.RoleAdmin))
			r.Post("/email/drain", admin.DrainEmail)
			r.Post("/email/verify", admin.VerifyEmail)
			r.Get("/email/jobs", admin.ListEmailJobs)
			r.Post("/reminders/scan", admin.ScanReminders)
		})

		r.With(apiMiddleware.RequireRole(auth.RoleAdmin, auth.RoleService)).
			Post("/activity", activity.Record)
	})

	r.Method(http.MethodGet, "/health", api.NewHealthHandler(app.db, app.logger))

	return r
}
