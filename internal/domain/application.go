// Package domain defines the workflow entities and their state machines.
//
// Application status graph:
//
//	Pending ──► Approved ◄──► Rejected
//	   │                        ▲
//	   └────────────────────────┘
//
// Nothing moves back to Pending once decided. Re-deciding between Approved
// and Rejected is allowed; deciding the current status again is a no-op.
package domain

import (
	"fmt"
	"time"
)

// ApplicationStatus values mirror the application_status column.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "Pending"
	ApplicationApproved ApplicationStatus = "Approved"
	ApplicationRejected ApplicationStatus = "Rejected"
)

// applicationTransitions lists every allowed (from → to) pair that changes state.
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending:  {ApplicationApproved, ApplicationRejected},
	ApplicationApproved: {ApplicationRejected},
	ApplicationRejected: {ApplicationApproved},
}

// ParseApplicationStatus converts a raw string to an ApplicationStatus.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	switch st {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsDecision reports whether s is a status a provider may decide.
func IsDecision(s ApplicationStatus) bool {
	return s == ApplicationApproved || s == ApplicationRejected
}

// CanTransitionApplication returns true when moving from → to is a state change
// permitted by the state machine. Self-transitions return false.
func CanTransitionApplication(from, to ApplicationStatus) bool {
	for _, s := range applicationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Metadata is what the student supplies with an application. Opaque to the workflow.
type Metadata struct {
	Phone       string `json:"phone,omitempty"`
	StudentYear string `json:"studentYear,omitempty"`
	WorkType    string `json:"workType,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Application is a student's request to work a job.
type Application struct {
	ID        string            `json:"id"`
	StudentID string            `json:"studentId"`
	JobID     string            `json:"jobId"`
	Status    ApplicationStatus `json:"status"`
	AppliedAt time.Time         `json:"appliedAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Metadata
}

// Assignment is the derived authorization for a student to work a job.
type Assignment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	JobID      string    `json:"jobId"`
	AssignedAt time.Time `json:"assignedAt"`
	Status     string    `json:"status"`
}

// AssignmentActive is the only status an existing assignment carries.
const AssignmentActive = "Active"
