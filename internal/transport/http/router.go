package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"mocktest-service/internal/app"
	"mocktest-service/internal/metrics"
)

// NewRouter mounts the WebSocket endpoint, the read API and the operational routes.
func NewRouter(service *app.AttemptService, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	ws := NewAttemptHandler(service, logger)
	api := NewAPIHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(m))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tests/{testID}/leaderboard", api.Leaderboard)
		r.Get("/users/{userID}/attempts", api.History)
		r.Get("/attempts/{attemptID}", api.Review)
	})
	return r
}

// instrument records request latency by route pattern. The wrapped writer
// keeps http.Hijacker so WebSocket upgrades pass through.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}
