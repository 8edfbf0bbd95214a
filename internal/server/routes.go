package server

import (
	"expvar"

	"github.com/go-chi/chi/v5"

	"github.com/AlieInmar1/pbtoado-sub002/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.webhook, s.bulk, s.store)
	h.SetLogger(s.logger)
	if s.exporter != nil {
		h.SetExporter(s.exporter)
	}

	// The webhook endpoint authenticates with its own shared secret.
	r.Route("/webhooks/productboard", func(r chi.Router) {
		r.Post("/", h.ProductBoardWebhook)
		r.Get("/", h.WebhookHandshake)
		r.Options("/", h.WebhookPreflight)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyMiddleware(s.apiKey))

		r.Get("/health", h.Health)

		r.Post("/sync", h.RunSync)
		r.Get("/sync-history", h.ListSyncHistory)
		r.Get("/hierarchy", h.GetHierarchy)

		r.Get("/work-items", h.ListWorkItems)
		if s.exporter != nil {
			r.Post("/work-items/{id}/export", h.ExportWorkItem)
		}

		r.Get("/mappings", h.ListMappings)
		r.Get("/mappings/{psID}", h.GetMapping)

		r.Get("/sync-logs", h.ListSyncLogs)
		r.Get("/sync-logs/{id}", h.GetSyncLog)

		r.Handle("/metrics", expvar.Handler())
	})
}
