package domain

import (
	"fmt"
	"time"
)

// JobStatus values mirror the job_status column.
//
//	Open ◄──► Closed
//	  │          │
//	  └──► Inactive ◄┘   (terminal, admin soft delete)
type JobStatus string

const (
	JobOpen     JobStatus = "Open"
	JobClosed   JobStatus = "Closed"
	JobInactive JobStatus = "Inactive"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobOpen:   {JobClosed, JobInactive},
	JobClosed: {JobOpen, JobInactive},
}

// ParseJobStatus converts a raw string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobOpen, JobClosed, JobInactive:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// CanTransitionJob returns true when from → to is permitted.
func CanTransitionJob(from, to JobStatus) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is a posting owned by a provider. Dates are calendar dates stored as
// midnight UTC.
type Job struct {
	ID          string     `json:"id"`
	ProviderID  string     `json:"providerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Salary      *float64   `json:"salary,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ExpiredOn reports whether the job's end date is strictly before date.
func (j *Job) ExpiredOn(date time.Time) bool {
	return j.EndDate != nil && j.EndDate.Before(date)
}

// DatesValid reports whether endDate ≥ startDate when both are set.
func DatesValid(start, end *time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	return !end.Before(*start)
}
