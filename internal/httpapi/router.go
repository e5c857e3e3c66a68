package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airquality-server/internal/config"
	"airquality-server/internal/modules/airquality/repository"
)

// NewRouter builds the chi router with the global middleware stack and the
// operational routes. Each feature registers its routes in a group that is
// rate limited per client IP.
func NewRouter(cfg config.Config, repository repository.MeasurementRepository, features ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg))

	registerHealthcheck(r, repository)
	r.Handle("/metrics", promhttp.Handler())
	registerDocs(r, cfg.StaticDir)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg))
		for _, register := range features {
			register(r)
		}
	})
	return r
}
