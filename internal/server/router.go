package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/crawlvec/internal/api/handlers"
	"github.com/cloo-solutions/crawlvec/internal/api/middleware"
	"github.com/cloo-solutions/crawlvec/internal/metrics"
)

type RouterConfig struct {
	// AuthValidator guards the mutating routes. Nil leaves them open.
	AuthValidator     middleware.AuthValidator
	CrawlHandler      *handlers.CrawlHandler
	SearchHandler     *handlers.SearchHandler
	CollectionHandler *handlers.CollectionHandler
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
	// Collection is tagged on request traces.
	Collection string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(middleware.TracingOptions{
		Collection: cfg.Collection,
		SkipPaths:  middleware.DefaultTraceSkipPaths,
	}))
	r.Use(middleware.AccessLog(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.CollectionHandler.Health)
	r.Get("/stats", cfg.CollectionHandler.Stats)
	r.Get("/sources", cfg.CollectionHandler.Sources)
	r.Post("/search", cfg.SearchHandler.Search)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}

		r.Post("/crawl", cfg.CrawlHandler.Crawl)
		r.Delete("/collection", cfg.CollectionHandler.Delete)
	})

	return r
}
