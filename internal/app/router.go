package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/narck25/gestion-visitas-promotores/internal/auth"
	"github.com/narck25/gestion-visitas-promotores/internal/clients"
	"github.com/narck25/gestion-visitas-promotores/internal/observability"
	"github.com/narck25/gestion-visitas-promotores/internal/ratelimit"
	"github.com/narck25/gestion-visitas-promotores/internal/users"
	"github.com/narck25/gestion-visitas-promotores/internal/visits"
	"github.com/narck25/gestion-visitas-promotores/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthService    *auth.Service
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	ClientsHandler *clients.Handler
	VisitsHandler  *visits.Handler
	JobsHandler    *jobs.Handler
	RateLimiter    *ratelimit.Policy
	Pool           *pgxpool.Pool
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router. Authentication runs before the
// per-principal rate limit so administrators are recognised for the bypass;
// the auth endpoints themselves are limited by IP.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded","database":"down"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		if params.RateLimiter != nil {
			r.Use(params.RateLimiter.Middleware(ratelimit.ClassAuth))
		}
		params.AuthHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.AuthService))
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService))

		r.Route("/users", func(r chi.Router) {
			if params.RateLimiter != nil {
				r.Use(params.RateLimiter.Middleware(ratelimit.ClassMutate))
			}
			params.UsersHandler.MountRoutes(r)
		})
		r.Route("/supervisor", func(r chi.Router) {
			if params.RateLimiter != nil {
				r.Use(params.RateLimiter.Middleware(ratelimit.ClassRead))
			}
			params.UsersHandler.MountSupervisorRoutes(r)
		})
		r.Route("/clients", func(r chi.Router) {
			if params.RateLimiter != nil {
				r.Use(params.RateLimiter.Middleware(ratelimit.ClassMutate))
			}
			params.ClientsHandler.MountRoutes(r)
		})
		r.Route("/visits", func(r chi.Router) {
			if params.RateLimiter != nil {
				r.Use(params.RateLimiter.Middleware(ratelimit.ClassMutate))
			}
			params.VisitsHandler.MountRoutes(r)
		})
		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				if params.RateLimiter != nil {
					r.Use(params.RateLimiter.Middleware(ratelimit.ClassRead))
				}
				params.JobsHandler.MountRoutes(r)
			})
		}
	})

	return r
}
