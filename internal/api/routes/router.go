package routes

import (
	"net/http"

	"github.com/mytegroup/billtracker/internal/api/handlers"
	"github.com/mytegroup/billtracker/internal/api/middleware"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	billHandler         *handlers.BillHandler
	subscriptionHandler *handlers.SubscriptionHandler
	discussionHandler   *handlers.DiscussionHandler
	sseHandler          *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
}

// NewRouter creates a new router. Every handler but billHandler, and
// cacheMiddleware, may be nil when its backing service is not configured.
func NewRouter(
	billHandler *handlers.BillHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	discussionHandler *handlers.DiscussionHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		billHandler:         billHandler,
		subscriptionHandler: subscriptionHandler,
		discussionHandler:   discussionHandler,
		sseHandler:          sseHandler,
		cacheMiddleware:     cacheMiddleware,
		metrics:             metrics,
		allowedOrigins:      allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Bill endpoints
	r.mux.HandleFunc("GET /api/bills", r.billHandler.ListBills)
	r.mux.HandleFunc("GET /api/bills/summary", r.billHandler.GetSummary)
	r.mux.HandleFunc("GET /api/bills/changed", r.billHandler.ListChanged)
	r.mux.HandleFunc("GET /api/bills/detail", r.billHandler.GetBill)
	r.mux.HandleFunc("GET /api/bills/search", r.billHandler.SearchBills)
	r.mux.HandleFunc("POST /api/enrichment/run", r.billHandler.RunEnrichment)

	if r.subscriptionHandler != nil {
		r.mux.HandleFunc("POST /api/subscriptions", r.subscriptionHandler.Subscribe)
		r.mux.HandleFunc("DELETE /api/subscriptions", r.subscriptionHandler.Unsubscribe)
		r.mux.HandleFunc("GET /api/users/{id}/preferences", r.subscriptionHandler.GetPreferences)
		r.mux.HandleFunc("PUT /api/users/{id}/preferences", r.subscriptionHandler.UpdatePreferences)
		r.mux.HandleFunc("GET /api/users/{id}/notifications", r.subscriptionHandler.ListNotifications)
	}

	if r.discussionHandler != nil {
		r.mux.HandleFunc("POST /api/threads", r.discussionHandler.CreateThread)
		r.mux.HandleFunc("GET /api/threads", r.discussionHandler.ListThreads)
		r.mux.HandleFunc("GET /api/threads/{id}", r.discussionHandler.GetThread)
		r.mux.HandleFunc("POST /api/threads/{id}/comments", r.discussionHandler.PostComment)
		r.mux.HandleFunc("POST /api/threads/{id}/comments/{commentId}/replies", r.discussionHandler.PostReply)
		r.mux.HandleFunc("POST /api/threads/{id}/comments/{commentId}/report", r.discussionHandler.Report)
		r.mux.HandleFunc("POST /api/threads/{id}/comments/{commentId}/{reaction}", r.discussionHandler.React)
		r.mux.HandleFunc("POST /api/threads/{id}/summarize", r.discussionHandler.Summarize)
	}

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/bills", r.sseHandler.StreamBillUpdates)
		r.mux.HandleFunc("GET /api/users/{id}/stream", r.sseHandler.StreamUserNotifications)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
