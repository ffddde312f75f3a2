// Package httpapi serves the workforce workflow over HTTP.
//
// Every route except /health and /metrics expects X-User-ID and X-User-Role
// headers forwarded by the Gateway. Responses use the envelope
// {message, data, errors}.
//
// Routes:
//
//	GET    /jobs                               → open jobs (expired ones are closed first)
//	POST   /jobs                               → create a job
//	GET    /provider/jobs                      → caller's jobs (all for admin)
//	GET    /jobs/{id}                          → one job
//	PUT    /jobs/{id}/dates                    → change start/end date
//	POST   /jobs/{id}/open|close|reopen        → lifecycle transitions
//	DELETE /jobs/{id}                          → deactivate (admin)
//	GET    /jobs/{id}/applications             → applications for a job
//	GET    /jobs/{id}/assignments              → active assignments for a job
//	DELETE /jobs/{id}/assignments/{studentId}  → revoke an assignment
//	POST   /applications                       → submit
//	GET    /applications                       → all applications (admin)
//	GET    /applications/my                    → caller's applications
//	GET    /applications/{id}                  → one application
//	PUT    /applications/{id}/status           → approve / reject
//	DELETE /applications/{id}                  → withdraw
//	POST   /checkin, /checkout                 → attendance events
//	GET    /attendance[/current|/my|/{id}]     → attendance reads
//	GET    /attendance/jobs/{jobId}            → records for a job
//	GET    /attendance/students/{studentId}    → records for a student
//	GET    /statistics                         → provider dashboard counters
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"jobmate/workforce-service/internal/applications"
	"jobmate/workforce-service/internal/assignments"
	"jobmate/workforce-service/internal/attendance"
	"jobmate/workforce-service/internal/jobs"
	"jobmate/workforce-service/internal/metrics"
	"jobmate/workforce-service/internal/ratelimit"
	"jobmate/workforce-service/internal/stats"
)

// Deps are the services and limits the handlers run against.
type Deps struct {
	Jobs         *jobs.Service
	Applications *applications.Service
	Assignments  *assignments.Registry
	Attendance   *attendance.Ledger
	Stats        *stats.Service

	Metrics *metrics.Metrics
	Log     *slog.Logger

	// Limiter caps write requests per user. Nil disables limiting.
	Limiter    ratelimit.Limiter
	RateLimit  int
	RateWindow time.Duration

	// Timeout bounds each request's context. Zero means no bound.
	Timeout time.Duration

	// Ready is probed by /health. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler holds shared dependencies.
type Handler struct {
	d   Deps
	log *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{d: d, log: log}
}

// Router mounts every route and the middleware chain.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.observe, h.recoverer, h.timeout, h.rateLimit)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", h.d.Metrics.Handler()).Methods(http.MethodGet)

	// Jobs
	r.HandleFunc("/jobs", h.listOpenJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs", h.createJob).Methods(http.MethodPost)
	r.HandleFunc("/provider/jobs", h.providerJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.deactivateJob).Methods(http.MethodDelete)
	r.HandleFunc("/jobs/{id}/dates", h.updateJobDates).Methods(http.MethodPut)
	r.HandleFunc("/jobs/{id}/open", h.openJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/close", h.closeJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/reopen", h.reopenJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/applications", h.jobApplications).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/assignments", h.jobAssignments).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/assignments/{studentId}", h.revokeAssignment).Methods(http.MethodDelete)

	// Applications
	r.HandleFunc("/applications", h.submitApplication).Methods(http.MethodPost)
	r.HandleFunc("/applications", h.listApplications).Methods(http.MethodGet)
	r.HandleFunc("/applications/my", h.myApplications).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}", h.getApplication).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}", h.withdrawApplication).Methods(http.MethodDelete)
	r.HandleFunc("/applications/{id}/status", h.decideApplication).Methods(http.MethodPut)

	// Attendance
	r.HandleFunc("/checkin", h.checkIn).Methods(http.MethodPost)
	r.HandleFunc("/checkout", h.checkOut).Methods(http.MethodPost)
	r.HandleFunc("/attendance", h.providerAttendance).Methods(http.MethodGet)
	r.HandleFunc("/attendance/current", h.currentCheckin).Methods(http.MethodGet)
	r.HandleFunc("/attendance/my", h.myAttendance).Methods(http.MethodGet)
	r.HandleFunc("/attendance/jobs/{jobId}", h.jobAttendance).Methods(http.MethodGet)
	r.HandleFunc("/attendance/students/{studentId}", h.studentAttendance).Methods(http.MethodGet)
	r.HandleFunc("/attendance/{id}", h.getAttendance).Methods(http.MethodGet)

	r.HandleFunc("/statistics", h.statistics).Methods(http.MethodGet)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.d.Ready != nil {
		if err := h.d.Ready(r.Context()); err != nil {
			h.log.Warn("readiness probe failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, "unavailable", map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, "ok", map[string]string{"status": "ok", "service": "workforce-service"})
}
