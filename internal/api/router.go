// Package api exposes exclusion-zone generation and layout validation over
// HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/layout"
	"github.com/sells-group/windsite/internal/setback"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// RateLimit is the sustained request rate per second across all clients.
	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
	Timeout      time.Duration

	Analysis exclusion.Options
	// Setbacks applies when a zones request carries neither setbacks nor a
	// turbine.
	Setbacks setback.Config
	Layout   layout.Options
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	h := &handlers{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))))
		}
		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}
		if opts.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(opts.MaxBodyBytes))
		}
		r.Post("/zones", h.zones)
		r.Post("/validate", h.validate)
		r.Post("/classify", h.classify)
	})

	return r
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
