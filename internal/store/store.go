// Package store defines the persistence contract the workflow services run
// against. Two implementations exist: Memory (this package) for tests and
// single-process deployments, and postgres.Store for production.
//
// All read-check-write sequences that span entities go through WithTx so the
// whole sequence commits or rolls back as a unit. Uniqueness is enforced by
// the store itself and reported as ErrConflict, which lets a losing concurrent
// writer fail with a typed error instead of silently duplicating a row.
package store

import (
	"context"
	"errors"
	"time"

	"jobmate/workforce-service/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
)

// JobFilter narrows ListJobs. Zero fields are ignored.
type JobFilter struct {
	ProviderID string
	Status     domain.JobStatus
	// EndBefore matches jobs whose end date is set and strictly before it.
	EndBefore *time.Time
}

// ApplicationFilter narrows ListApplications. ProviderID matches through the job.
type ApplicationFilter struct {
	StudentID  string
	JobID      string
	ProviderID string
	Status     domain.ApplicationStatus
}

// AttendanceFilter narrows ListAttendance. ProviderID matches through the job.
type AttendanceFilter struct {
	StudentID  string
	JobID      string
	ProviderID string
	OpenOnly   bool
}

// Repository is the set of operations available both outside and inside a
// transaction. List results are ordered newest first.
type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)

	CreateJob(ctx context.Context, j *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	// GetJobForUpdate reads the row and locks it until the surrounding
	// transaction ends.
	GetJobForUpdate(ctx context.Context, id string) (*domain.Job, error)
	UpdateJob(ctx context.Context, j *domain.Job) error
	// CloseJobIfOpen flips the job to Closed only when it is currently Open.
	// It reports whether a row changed.
	CloseJobIfOpen(ctx context.Context, id string, at time.Time) (bool, error)
	ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error)

	CreateApplication(ctx context.Context, a *domain.Application) error
	GetApplication(ctx context.Context, id string) (*domain.Application, error)
	// GetApplicationForUpdate reads the row and locks it until the
	// surrounding transaction ends.
	GetApplicationForUpdate(ctx context.Context, id string) (*domain.Application, error)
	FindApplication(ctx context.Context, studentID, jobID string) (*domain.Application, error)
	UpdateApplicationStatus(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) error
	DeleteApplication(ctx context.Context, id string) error
	ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.Application, error)

	GetAssignment(ctx context.Context, studentID, jobID string) (*domain.Assignment, error)
	CreateAssignment(ctx context.Context, a *domain.Assignment) error
	// DeleteAssignment reports whether an assignment existed.
	DeleteAssignment(ctx context.Context, studentID, jobID string) (bool, error)
	ListAssignments(ctx context.Context, jobID string) ([]domain.Assignment, error)

	CreateAttendance(ctx context.Context, r *domain.AttendanceRecord) error
	GetAttendance(ctx context.Context, id string) (*domain.AttendanceRecord, error)
	FindAttendanceOnDay(ctx context.Context, studentID, jobID string, day time.Time) (*domain.AttendanceRecord, error)
	// SetCheckout sets checkout_time only while it is still null.
	// It reports whether a row changed.
	SetCheckout(ctx context.Context, id string, at time.Time) (bool, error)
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]domain.AttendanceRecord, error)

	ProviderStatistics(ctx context.Context, providerID string) (*domain.ProviderStatistics, error)
}

// Store is a Repository that can also run a function inside a transaction.
// If fn returns an error nothing it wrote is kept.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
