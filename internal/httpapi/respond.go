package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/domain"
)

const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"

	maxBody = 1 << 20
)

// envelope is the JSON shape of every response.
type envelope struct {
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Message: msg, Data: data})
}

// fail writes err with the status its kind maps to. Unexpected errors are
// logged and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindUnexpected {
		h.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(ae.Kind))
	_ = json.NewEncoder(w).Encode(envelope{Message: ae.Message, Errors: ae.Fields})
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidState, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// actor resolves the caller from the Gateway headers.
func actor(r *http.Request) (domain.Actor, error) {
	id := r.Header.Get(headerUserID)
	if id == "" {
		return domain.Actor{}, apperr.Unauthorized("missing X-User-ID header")
	}
	raw := r.Header.Get(headerRole)
	if raw == "" {
		return domain.Actor{}, apperr.Unauthorized("missing X-User-Role header")
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		return domain.Actor{}, apperr.Unauthorized(fmt.Sprintf("invalid X-User-Role %q", raw))
	}
	return domain.Actor{UserID: id, Role: role}, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.New(apperr.KindValidation, "invalid request body: "+err.Error())
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, apperr.Validation("invalid date", map[string]string{field: "must be a date in YYYY-MM-DD format"})
	}
	return &d, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
