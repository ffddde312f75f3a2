// Package applications implements the application state machine: students
// submit, the job's provider (or an admin) decides, and the decision keeps
// the assignment registry in step inside the same transaction.
package applications

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/assignments"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/metrics"
	"jobmate/workforce-service/internal/notify"
	"jobmate/workforce-service/internal/store"
)

// Service implements the application workflow.
type Service struct {
	store       store.Store
	clock       clock.Clock
	assignments *assignments.Registry
	notify      *notify.Dispatcher
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func NewService(st store.Store, clk clock.Clock, reg *assignments.Registry, d *notify.Dispatcher, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, clock: clk, assignments: reg, notify: d, log: log, metrics: m}
}

// ─── Commands ────────────────────────────────────────────────────────────────

// Submit creates a Pending application. A student always applies for
// themself; an admin applies on behalf of studentID.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, studentID, jobID string, md domain.Metadata) (*domain.Application, error) {
	switch {
	case actor.IsStudent():
		if studentID != "" && studentID != actor.UserID {
			return nil, apperr.Forbidden("students can only apply for themselves")
		}
		studentID = actor.UserID
	case actor.IsAdmin():
		if studentID == "" {
			return nil, apperr.Validation("invalid application", map[string]string{"studentId": "is required"})
		}
	default:
		return nil, apperr.Forbidden("only students and admins can submit applications")
	}
	if jobID == "" {
		return nil, apperr.Validation("invalid application", map[string]string{"jobId": "is required"})
	}
	if err := validateMetadata(&md); err != nil {
		return nil, err
	}

	var (
		app *domain.Application
		job *domain.Job
	)
	err := s.store.WithTx(ctx, func(tx store.Repository) error {
		var err error
		job, err = tx.GetJob(ctx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrJobNotFound
		}
		if err != nil {
			return apperr.Unexpected("load job", err)
		}

		_, err = tx.FindApplication(ctx, studentID, jobID)
		if err == nil {
			return apperr.ErrDuplicateApplication
		}
		if !errors.Is(err, store.ErrNotFound) {
			return apperr.Unexpected("find application", err)
		}

		now := s.clock.Now()
		if job.Status != domain.JobOpen || job.ExpiredOn(clock.DateOf(now, s.clock.Location())) {
			return apperr.ErrJobNotOpen.WithMessage("job is not open for applications (status %s)", job.Status)
		}

		app = &domain.Application{
			ID:        uuid.NewString(),
			StudentID: studentID,
			JobID:     jobID,
			Status:    domain.ApplicationPending,
			AppliedAt: now,
			UpdatedAt: now,
			Metadata:  md,
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.ErrDuplicateApplication
			}
			return apperr.Unexpected("create application", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("application submitted", "applicationId", app.ID, "jobId", jobID, "studentId", studentID)
	s.notify.ApplicationSubmitted(notify.NewApplicationFor(ctx, s.store, app, job))
	return app, nil
}

// Decide moves an application to Approved or Rejected. Deciding the current
// status again changes nothing and notifies nobody. Entering Approved creates
// the assignment; leaving it removes the assignment.
func (s *Service) Decide(ctx context.Context, actor domain.Actor, applicationID string, to domain.ApplicationStatus) (*domain.Application, error) {
	if !domain.IsDecision(to) {
		return nil, apperr.ErrInvalidDecision
	}
	if !actor.IsAdmin() && !actor.IsProvider() {
		return nil, apperr.Forbidden("only providers and admins can decide applications")
	}

	var (
		app     *domain.Application
		job     *domain.Job
		changed bool
		from    domain.ApplicationStatus
	)
	err := s.store.WithTx(ctx, func(tx store.Repository) error {
		var err error
		app, err = tx.GetApplicationForUpdate(ctx, applicationID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrApplicationNotFound
		}
		if err != nil {
			return apperr.Unexpected("load application", err)
		}
		job, err = tx.GetJob(ctx, app.JobID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrJobNotFound
		}
		if err != nil {
			return apperr.Unexpected("load job", err)
		}
		if !actor.CanManageJob(job) {
			return apperr.Forbidden("you do not manage this job")
		}

		from = app.Status
		if from == to {
			return nil
		}
		if !domain.CanTransitionApplication(from, to) {
			return apperr.ErrInvalidDecision.WithMessage("transition %s → %s is not allowed", from, to)
		}

		now := s.clock.Now()
		if err := tx.UpdateApplicationStatus(ctx, app.ID, to, now); err != nil {
			return apperr.Unexpected("update application status", err)
		}
		switch {
		case to == domain.ApplicationApproved:
			if _, _, err := s.assignments.EnsureTx(ctx, tx, app.StudentID, app.JobID, now); err != nil {
				return err
			}
		case from == domain.ApplicationApproved:
			if _, err := s.assignments.RemoveTx(ctx, tx, app.StudentID, app.JobID); err != nil {
				return err
			}
		}
		app.Status = to
		app.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return app, nil
	}

	s.log.Info("application decided",
		"applicationId", app.ID, "from", from, "to", to, "by", actor.UserID)
	s.metrics.Decision(string(to))
	s.notify.ApplicationDecided(notify.DecisionFor(ctx, s.store, app, job))
	return app, nil
}

// Withdraw deletes an application in any state. The owning student or an
// admin may withdraw; an Approved application takes its assignment with it.
func (s *Service) Withdraw(ctx context.Context, actor domain.Actor, applicationID string) error {
	return s.store.WithTx(ctx, func(tx store.Repository) error {
		app, err := tx.GetApplicationForUpdate(ctx, applicationID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrApplicationNotFound
		}
		if err != nil {
			return apperr.Unexpected("load application", err)
		}
		if !actor.IsAdmin() && !(actor.IsStudent() && actor.UserID == app.StudentID) {
			return apperr.Forbidden("only the applicant or an admin can withdraw an application")
		}
		if app.Status == domain.ApplicationApproved {
			if _, err := s.assignments.RemoveTx(ctx, tx, app.StudentID, app.JobID); err != nil {
				return err
			}
		}
		if err := tx.DeleteApplication(ctx, app.ID); err != nil {
			return apperr.Unexpected("delete application", err)
		}
		s.log.Info("application withdrawn", "applicationId", app.ID, "status", app.Status, "by", actor.UserID)
		return nil
	})
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Get returns an application to its student, the job's provider or an admin.
func (s *Service) Get(ctx context.Context, actor domain.Actor, applicationID string) (*domain.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrApplicationNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("load application", err)
	}
	if actor.IsAdmin() || (actor.IsStudent() && actor.UserID == app.StudentID) {
		return app, nil
	}
	if actor.IsProvider() {
		job, err := s.store.GetJob(ctx, app.JobID)
		if err == nil && actor.CanManageJob(job) {
			return app, nil
		}
	}
	return nil, apperr.Forbidden("you cannot view this application")
}

// ListMine returns the calling student's applications.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Application, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students have their own applications")
	}
	return s.list(ctx, store.ApplicationFilter{StudentID: actor.UserID})
}

// ListForJob returns a job's applications to its owner or an admin.
func (s *Service) ListForJob(ctx context.Context, actor domain.Actor, jobID string) ([]domain.Application, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrJobNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("load job", err)
	}
	if !actor.CanManageJob(job) {
		return nil, apperr.Forbidden("you do not manage this job")
	}
	return s.list(ctx, store.ApplicationFilter{JobID: jobID})
}

// ListAll returns every application, optionally filtered by status. Admin only.
func (s *Service) ListAll(ctx context.Context, actor domain.Actor, status domain.ApplicationStatus) ([]domain.Application, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can list all applications")
	}
	return s.list(ctx, store.ApplicationFilter{Status: status})
}

func (s *Service) list(ctx context.Context, f store.ApplicationFilter) ([]domain.Application, error) {
	apps, err := s.store.ListApplications(ctx, f)
	if err != nil {
		return nil, apperr.Unexpected("list applications", err)
	}
	return apps, nil
}
