package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"jobmate/workforce-service/internal/domain"
)

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body struct {
		JobID string `json:"jobId"`
	}
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.d.Attendance.CheckIn(r.Context(), a, body.JobID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "checked in", rec)
}

func (h *Handler) checkOut(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body struct {
		CheckinID string `json:"checkinId"`
	}
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.d.Attendance.CheckOut(r.Context(), a, body.CheckinID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "checked out", rec)
}

func (h *Handler) currentCheckin(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.d.Attendance.CurrentCheckin(r.Context(), a)
	if err != nil {
		h.fail(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, "no active check-in", nil)
		return
	}
	writeJSON(w, http.StatusOK, "active check-in", rec)
}

func (h *Handler) myAttendance(w http.ResponseWriter, r *http.Request) {
	h.records(w, r, "my attendance", func(a domain.Actor) ([]domain.AttendanceRecord, error) {
		return h.d.Attendance.ListMine(r.Context(), a)
	})
}

func (h *Handler) providerAttendance(w http.ResponseWriter, r *http.Request) {
	h.records(w, r, "attendance", func(a domain.Actor) ([]domain.AttendanceRecord, error) {
		return h.d.Attendance.ListForProvider(r.Context(), a)
	})
}

func (h *Handler) jobAttendance(w http.ResponseWriter, r *http.Request) {
	h.records(w, r, "job attendance", func(a domain.Actor) ([]domain.AttendanceRecord, error) {
		return h.d.Attendance.ListForJob(r.Context(), a, mux.Vars(r)["jobId"])
	})
}

func (h *Handler) studentAttendance(w http.ResponseWriter, r *http.Request) {
	h.records(w, r, "student attendance", func(a domain.Actor) ([]domain.AttendanceRecord, error) {
		return h.d.Attendance.ListForStudent(r.Context(), a, mux.Vars(r)["studentId"])
	})
}

func (h *Handler) getAttendance(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.d.Attendance.Get(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "attendance record", rec)
}

func (h *Handler) records(w http.ResponseWriter, r *http.Request, msg string, list func(domain.Actor) ([]domain.AttendanceRecord, error)) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := list(a)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg, nonNil(out))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	st, err := h.d.Stats.ForProvider(r.Context(), a, r.URL.Query().Get("providerId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "statistics", st)
}
