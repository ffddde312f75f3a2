package grpcserver

import "jobmate/workforce-service/internal/domain"

// ─── Request / response messages ─────────────────────────────────────────────

type SubmitApplicationRequest struct {
	// StudentID is only read when an admin submits on a student's behalf.
	StudentID string          `json:"studentId,omitempty"`
	JobID     string          `json:"jobId"`
	Metadata  domain.Metadata `json:"metadata"`
}

type DecideApplicationRequest struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

type WithdrawApplicationRequest struct {
	ApplicationID string `json:"applicationId"`
}

type RevokeAssignmentRequest struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
}

type CheckInRequest struct {
	JobID string `json:"jobId"`
}

type CheckOutRequest struct {
	CheckinID string `json:"checkinId"`
}

type CurrentCheckinRequest struct{}

type CurrentCheckinResponse struct {
	// Record is nil when the student has no open check-in.
	Record *domain.AttendanceRecord `json:"record"`
}

type SweepExpiredRequest struct {
	// AsOf is a YYYY-MM-DD date; empty means today.
	AsOf string `json:"asOf,omitempty"`
}

// Ack answers commands that return nothing.
type Ack struct {
	OK bool `json:"ok"`
}
