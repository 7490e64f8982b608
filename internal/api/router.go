package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds the env-derived settings for auth and CORS.
type RouterConfig struct {
	// BackendAPIKey guards the render and job routes. Empty disables auth (dev mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated origin list. Empty allows "*".
	CorsAllowedOrigins string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "Range"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length", "Content-Range"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public: health, scratch usage and output downloads
	r.Get("/health", h.Health)
	r.Get("/storage", h.Storage)
	r.Route("/download", func(r chi.Router) {
		r.Get("/video/{jobId}", h.DownloadVideo)
		r.Get("/thumbnail/{jobId}", h.DownloadThumbnail)
	})

	r.Group(func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		r.Post("/generate", h.Generate)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.EnqueueJob)
			r.Get("/", h.ListJobs)
			r.Get("/{id}", h.GetJob)
		})
	})

	return r
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
