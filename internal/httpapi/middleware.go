package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"jobmate/workforce-service/internal/apperr"
)

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("http handler panic", "method", r.Method, "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// observe logs each request and records it under its route template so ids
// do not explode metric cardinality.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		h.d.Metrics.ObserveHTTP(route, r.Method, strconv.Itoa(rec.status), elapsed)
		if route != "/health" && route != "/metrics" {
			h.log.Info("http request",
				"method", r.Method, "route", route, "status", rec.status,
				"duration", elapsed, "userId", r.Header.Get(headerUserID))
		}
	})
}

func (h *Handler) timeout(next http.Handler) http.Handler {
	if h.d.Timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.d.Timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit caps write requests per caller. Reads are not limited.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	if h.d.Limiter == nil || h.d.RateLimit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(headerUserID)
		if key == "" {
			key, _, _ = net.SplitHostPort(r.RemoteAddr)
		}
		if !h.d.Limiter.Allow(r.Context(), "http:"+key, h.d.RateLimit, h.d.RateWindow) {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.d.RateWindow.Seconds())))
			h.fail(w, apperr.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
