package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Routes builds the full chi router: CORS ahead of routing, the standard
// RequestID/RealIP/Logger/Recoverer middleware stack, then the
// dispatcher's own routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Get("/healthz", s.Healthz)

	r.Post("/api/tools/{name}", s.InvokeTool)

	r.Get("/openapi/{hash}/json", s.DescriptionJSON)
	r.Get("/openapi/{hash}/yaml", s.DescriptionYAML)

	r.Get("/ws/worker", s.Sessions.HandleUpgrade)

	r.Get("/login", s.Admin.LoginForm)
	r.Post("/login", s.Admin.Login)
	r.Get("/logout", s.Admin.Logout)

	r.Group(func(r chi.Router) {
		r.Use(s.Admin.RequireAdmin)
		r.Get("/admin", s.Admin.Dashboard)
		r.Get("/api/admin/stats", s.Admin.StatsJSON)
		r.Get("/logs/events", s.Admin.LogsEvents)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

// Healthz is the unauthenticated liveness probe.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
