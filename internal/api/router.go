package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	apiContext "graphreader/internal/api/context"
	"graphreader/internal/api/handlers"
	"graphreader/internal/api/middleware"
	"graphreader/internal/pkg/errors"
	"graphreader/internal/platform/config"
	"graphreader/internal/platform/metrics"
)

type Dependencies struct {
	EntityHandler    *handlers.EntityHandler
	CommunityHandler *handlers.CommunityHandler
	SearchHandler    *handlers.SearchHandler
	APIKeyHandler    *handlers.APIKeyHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	CORS             config.CORSConfig
}

// NewRouter registers every route and wraps the router in the global
// middleware stack: request id, logging, CORS.
func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r := &routes{router: router, metrics: deps.Metrics}

	// Public
	r.handle(http.MethodGet, "/health", deps.HealthHandler.Check)
	r.handle(http.MethodGet, "/metrics", deps.MetricsHandler.Export)

	authMid := deps.AuthMiddleware
	limit := deps.RateLimiter

	// Graph queries
	r.handle(http.MethodGet, "/entity/:entity_id",
		chain(deps.EntityHandler.Get, authMid.Handle, limit.Handle))
	r.handle(http.MethodGet, "/entity/:entity_id/neighbors",
		chain(deps.EntityHandler.Neighbors, authMid.Handle, limit.Handle))
	r.handle(http.MethodGet, "/entity/:entity_id/community",
		chain(deps.EntityHandler.Community, authMid.Handle, limit.Handle))
	r.handle(http.MethodGet, "/community/:community_id/members",
		chain(deps.CommunityHandler.Members, authMid.Handle, limit.Handle))
	r.handle(http.MethodGet, "/search",
		chain(deps.SearchHandler.Search, authMid.Handle, limit.Handle))

	// API key management, local store or identity service depending on mode
	r.handle(http.MethodPost, "/apikeys",
		chain(deps.APIKeyHandler.Create, authMid.Handle, limit.Handle))
	r.handle(http.MethodGet, "/apikeys",
		chain(deps.APIKeyHandler.List, authMid.Handle, limit.Handle))
	r.handle(http.MethodDelete, "/apikeys/:key_id",
		chain(deps.APIKeyHandler.Delete, authMid.Handle, limit.Handle))

	var handler http.Handler = router
	handler = middleware.CORS(deps.CORS)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	return handler
}

type routes struct {
	router  *httprouter.Router
	metrics *metrics.Metrics
}

func (rt *routes) handle(method, path string, handler http.HandlerFunc) {
	rt.router.Handle(method, path, rt.wrap(path, handler))
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// wrap converts to httprouter.Handle, injecting params and recording metrics
// under the route pattern rather than the raw path.
func (rt *routes) wrap(pattern string, handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)

		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(rec, r.WithContext(ctx))

		rt.metrics.ObserveRequest(pattern, r.Method, rec.Status(), time.Since(start))
	}
}
