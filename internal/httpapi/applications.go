package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/domain"
)

type submitApplicationRequest struct {
	// StudentID is only read for admins applying on a student's behalf.
	StudentID   string `json:"studentId"`
	JobID       string `json:"jobId"`
	Phone       string `json:"phone"`
	StudentYear string `json:"studentYear"`
	WorkType    string `json:"workType"`
	Notes       string `json:"notes"`
}

// parseStatus accepts an application status in any letter case.
func parseStatus(field, raw string) (domain.ApplicationStatus, error) {
	st, err := domain.ParseApplicationStatus(domain.Canonical(raw))
	if err != nil {
		return "", apperr.Validation("invalid status", map[string]string{field: "must be one of: Pending, Approved, Rejected"})
	}
	return st, nil
}

func (h *Handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body submitApplicationRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	app, err := h.d.Applications.Submit(r.Context(), a, body.StudentID, body.JobID, domain.Metadata{
		Phone:       body.Phone,
		StudentYear: body.StudentYear,
		WorkType:    body.WorkType,
		Notes:       body.Notes,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "application submitted", app)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var st domain.ApplicationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if st, err = parseStatus("status", raw); err != nil {
			h.fail(w, err)
			return
		}
	}
	out, err := h.d.Applications.ListAll(r.Context(), a, st)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "applications", nonNil(out))
}

func (h *Handler) myApplications(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.d.Applications.ListMine(r.Context(), a)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "my applications", nonNil(out))
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	app, err := h.d.Applications.Get(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "application", app)
}

func (h *Handler) decideApplication(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	to, err := parseStatus("status", body.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	app, err := h.d.Applications.Decide(r.Context(), a, mux.Vars(r)["id"], to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "application "+string(app.Status), app)
}

func (h *Handler) withdrawApplication(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.d.Applications.Withdraw(r.Context(), a, mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "application withdrawn", nil)
}
