// Package assignments keeps the set of (student, job) pairs a student is
// authorised to work. An assignment exists exactly while the student's
// application for the job is Approved; the attendance ledger asks IsActive
// and nothing else.
package assignments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/metrics"
	"jobmate/workforce-service/internal/notify"
	"jobmate/workforce-service/internal/store"
)

// Registry is the assignment registry.
type Registry struct {
	store   store.Store
	clock   clock.Clock
	notify  *notify.Dispatcher
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewRegistry(st store.Store, clk clock.Clock, d *notify.Dispatcher, log *slog.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: st, clock: clk, notify: d, log: log, metrics: m}
}

// EnsureTx creates the assignment inside tx unless one already exists.
// created is false when it was already there.
func (r *Registry) EnsureTx(ctx context.Context, tx store.Repository, studentID, jobID string, at time.Time) (a *domain.Assignment, created bool, err error) {
	existing, err := tx.GetAssignment(ctx, studentID, jobID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, apperr.Unexpected("load assignment", err)
	}

	a = &domain.Assignment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		JobID:      jobID,
		AssignedAt: at,
		Status:     domain.AssignmentActive,
	}
	if err := tx.CreateAssignment(ctx, a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, false, apperr.ErrAssignmentConflict
		}
		return nil, false, apperr.Unexpected("create assignment", err)
	}
	return a, true, nil
}

// RemoveTx deletes the assignment inside tx and reports whether one existed.
func (r *Registry) RemoveTx(ctx context.Context, tx store.Repository, studentID, jobID string) (bool, error) {
	removed, err := tx.DeleteAssignment(ctx, studentID, jobID)
	if err != nil {
		return false, apperr.Unexpected("delete assignment", err)
	}
	return removed, nil
}

// Ensure is EnsureTx in its own transaction.
func (r *Registry) Ensure(ctx context.Context, studentID, jobID string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := r.store.WithTx(ctx, func(tx store.Repository) error {
		a, _, err := r.EnsureTx(ctx, tx, studentID, jobID, r.clock.Now())
		out = a
		return err
	})
	return out, err
}

// IsActive reports whether the student may currently work the job.
func (r *Registry) IsActive(ctx context.Context, studentID, jobID string) (bool, error) {
	return r.IsActiveTx(ctx, r.store, studentID, jobID)
}

// IsActiveTx is IsActive evaluated inside tx.
func (r *Registry) IsActiveTx(ctx context.Context, tx store.Repository, studentID, jobID string) (bool, error) {
	a, err := tx.GetAssignment(ctx, studentID, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Unexpected("load assignment", err)
	}
	return a.Status == domain.AssignmentActive, nil
}

// Revoke removes the student's assignment and moves the linked application
// from Approved to Rejected so the two never disagree. The student is
// notified after commit.
func (r *Registry) Revoke(ctx context.Context, actor domain.Actor, studentID, jobID string) error {
	var (
		job *domain.Job
		app *domain.Application
	)
	err := r.store.WithTx(ctx, func(tx store.Repository) error {
		var err error
		job, err = tx.GetJob(ctx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrJobNotFound
		}
		if err != nil {
			return apperr.Unexpected("load job", err)
		}
		if !actor.CanManageJob(job) {
			return apperr.Forbidden("you do not manage this job")
		}

		removed, err := r.RemoveTx(ctx, tx, studentID, jobID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.ErrAssignmentNotFound
		}

		found, err := tx.FindApplication(ctx, studentID, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return apperr.Unexpected("load application", err)
		}
		if found.Status != domain.ApplicationApproved {
			return nil
		}
		now := r.clock.Now()
		if err := tx.UpdateApplicationStatus(ctx, found.ID, domain.ApplicationRejected, now); err != nil {
			return apperr.Unexpected("reject application", err)
		}
		found.Status = domain.ApplicationRejected
		found.UpdatedAt = now
		app = found
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info("assignment revoked", "studentId", studentID, "jobId", jobID, "by", actor.UserID)
	if app != nil {
		r.metrics.Decision(string(domain.ApplicationRejected))
		r.notify.ApplicationDecided(notify.DecisionFor(ctx, r.store, app, job))
	}
	return nil
}

// ListForJob returns the job's assignments to its owner or an admin.
func (r *Registry) ListForJob(ctx context.Context, actor domain.Actor, jobID string) ([]domain.Assignment, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrJobNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("load job", err)
	}
	if !actor.CanManageJob(job) {
		return nil, apperr.Forbidden("you do not manage this job")
	}
	out, err := r.store.ListAssignments(ctx, jobID)
	if err != nil {
		return nil, apperr.Unexpected("list assignments", err)
	}
	return out, nil
}
