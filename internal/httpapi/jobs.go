package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/jobs"
)

type createJobRequest struct {
	ProviderID  string   `json:"providerId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Salary      *float64 `json:"salary"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
}

type jobDatesRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (h *Handler) listOpenJobs(w http.ResponseWriter, r *http.Request) {
	if _, err := actor(r); err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.d.Jobs.ListOpen(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "open jobs", nonNil(out))
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	if _, err := actor(r); err != nil {
		h.fail(w, err)
		return
	}
	job, err := h.d.Jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "job", job)
}

func (h *Handler) providerJobs(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.d.Jobs.ListByProvider(r.Context(), a)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "provider jobs", nonNil(out))
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body createJobRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	start, err := parseDate("startDate", body.StartDate)
	if err != nil {
		h.fail(w, err)
		return
	}
	end, err := parseDate("endDate", body.EndDate)
	if err != nil {
		h.fail(w, err)
		return
	}

	job, err := h.d.Jobs.Create(r.Context(), a, jobs.CreateInput{
		ProviderID:  body.ProviderID,
		Title:       body.Title,
		Description: body.Description,
		Location:    body.Location,
		Salary:      body.Salary,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "job created", job)
}

func (h *Handler) updateJobDates(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body jobDatesRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	start, err := parseDate("startDate", body.StartDate)
	if err != nil {
		h.fail(w, err)
		return
	}
	end, err := parseDate("endDate", body.EndDate)
	if err != nil {
		h.fail(w, err)
		return
	}
	job, err := h.d.Jobs.UpdateDates(r.Context(), a, mux.Vars(r)["id"], start, end)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "job dates updated", job)
}

func (h *Handler) openJob(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body struct {
		EndDate string `json:"endDate"`
	}
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	end, err := parseDate("endDate", body.EndDate)
	if err != nil {
		h.fail(w, err)
		return
	}
	job, err := h.d.Jobs.Open(r.Context(), a, mux.Vars(r)["id"], end)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "job opened", job)
}

func (h *Handler) closeJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.d.Jobs.Close, "job closed")
}

func (h *Handler) reopenJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.d.Jobs.Reopen, "job reopened")
}

func (h *Handler) deactivateJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.d.Jobs.Deactivate, "job deactivated")
}

// transition runs a body-less lifecycle command on the job in the path.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, domain.Actor, string) (*domain.Job, error), msg string) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	job, err := fn(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg, job)
}

func (h *Handler) jobApplications(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.d.Applications.ListForJob(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "job applications", nonNil(out))
}

func (h *Handler) jobAssignments(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.d.Assignments.ListForJob(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "job assignments", nonNil(out))
}

func (h *Handler) revokeAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	vars := mux.Vars(r)
	if err := h.d.Assignments.Revoke(r.Context(), a, vars["studentId"], vars["id"]); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "assignment revoked", nil)
}
