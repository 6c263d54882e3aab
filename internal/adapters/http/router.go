package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/PykeW/update-all/internal/application"
)

// Handler is the HTTP adapter entrypoint for portal use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers portal HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/dingtalk/config", handler.dingtalkConfig)
			r.Get("/dingtalk/callback", handler.dingtalkCallback)
			r.Post("/dingtalk/login", handler.dingtalkLogin)
			r.Post("/login", handler.login)
			r.Post("/refresh", handler.refresh)

			r.Group(func(r chi.Router) {
				r.Use(handler.authMiddleware)
				r.Post("/logout", handler.logout)
				r.Get("/profile", handler.profile)
			})
		})

		r.Route("/software", func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/", handler.listSoftware)
			r.Get("/search", handler.searchSoftware)
			r.Get("/recommended", handler.recommendedSoftware)
			r.Get("/{software_id}", handler.getSoftware)
			r.Get("/{software_id}/download", handler.downloadSoftware)

			r.Group(func(r chi.Router) {
				r.Use(handler.adminMiddleware)
				r.Post("/", handler.createSoftware)
				r.Put("/{software_id}", handler.updateSoftware)
				r.Delete("/{software_id}", handler.deleteSoftware)
				r.Get("/{software_id}/downloads", handler.softwareDownloadHistory)
				r.Get("/{software_id}/stats", handler.softwareDownloadStats)
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Use(handler.authMiddleware, handler.adminMiddleware)
			r.Post("/package", handler.uploadPackage)
		})

		r.Route("/downloads", func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/my", handler.myDownloadHistory)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/{user_id}", handler.getUser)
			r.Put("/{user_id}", handler.updateUser)

			r.Group(func(r chi.Router) {
				r.Use(handler.adminMiddleware)
				r.Get("/", handler.listUsers)
				r.Post("/", handler.createUser)
				r.Delete("/{user_id}", handler.deleteUser)
			})
		})
	})

	return r
}
