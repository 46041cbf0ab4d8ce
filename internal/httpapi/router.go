package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/graphql"
	"github.com/rpattn/engcrm/internal/middleware"
)

// NewRouter wires the JSON API, the GraphQL endpoint, metrics and health
// endpoints behind CORS and access logging.
func NewRouter(h *Handler, logger *zap.Logger, allowedOrigins []string) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/registry/{entityType}/fields", h.listFields)

	api.HandleFunc("GET /api/smart-lists", h.listSmartLists)
	api.HandleFunc("POST /api/smart-lists", h.createSmartList)
	api.HandleFunc("POST /api/smart-lists/preview", h.previewSmartList)
	api.HandleFunc("POST /api/smart-lists/refresh", h.refreshAllSmartLists)
	api.HandleFunc("GET /api/smart-lists/{id}", h.getSmartList)
	api.HandleFunc("PUT /api/smart-lists/{id}", h.updateSmartList)
	api.HandleFunc("DELETE /api/smart-lists/{id}", h.deleteSmartList)
	api.HandleFunc("POST /api/smart-lists/{id}/refresh", h.refreshSmartList)
	api.HandleFunc("GET /api/smart-lists/{id}/export", h.exportSmartList)

	api.HandleFunc("POST /api/entities", h.createEntity)
	api.HandleFunc("POST /api/entities/batch", h.batchEntities)
	api.HandleFunc("POST /api/entities/import", h.importEntities)
	api.HandleFunc("GET /api/entities/{id}", h.getEntity)
	api.HandleFunc("PUT /api/entities/{id}", h.updateEntity)
	api.HandleFunc("DELETE /api/entities/{id}", h.deleteEntity)

	gql := graphql.NewServer(graphql.NewResolver(h.service, h.registry, h.refreshConcurrency), logger)

	root := http.NewServeMux()
	root.Handle("/api/", middleware.ScopeMiddleware(middleware.DataLoaderMiddleware(h.entities)(api)))
	root.Handle("/query", middleware.ScopeMiddleware(gql))
	root.Handle("GET /metrics", promhttp.Handler())
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", middleware.HeaderOrganizationID, middleware.HeaderUserID},
	})

	return corsHandler.Handler(middleware.LoggingMiddleware(logger)(root))
}
