// Package jobs owns the job posting lifecycle: creation, date edits, the
// Open/Closed/Inactive state machine and the expiry sweep that closes jobs
// whose end date has passed.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/metrics"
	"jobmate/workforce-service/internal/ratelimit"
	"jobmate/workforce-service/internal/store"
)

// sweepKey is the gate key shared by every opportunistic sweep.
const sweepKey = "jobs:sweep"

// Service implements the job lifecycle.
type Service struct {
	store   store.Store
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics

	gate       ratelimit.Gate
	sweepEvery time.Duration
}

// NewService returns a Service. log and m may be nil.
func NewService(st store.Store, clk clock.Clock, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, clock: clk, log: log, metrics: m}
}

// WithSweepGate throttles the sweep ListOpen runs to once per every.
// Without a gate ListOpen sweeps on every call.
func (s *Service) WithSweepGate(g ratelimit.Gate, every time.Duration) *Service {
	s.gate = g
	s.sweepEvery = every
	return s
}

// CreateInput is what a provider (or an admin on a provider's behalf) submits.
type CreateInput struct {
	ProviderID  string
	Title       string
	Description string
	Location    string
	Salary      *float64
	StartDate   *time.Time
	EndDate     *time.Time
}

// Create stores a new Open job.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Job, error) {
	providerID := in.ProviderID
	switch {
	case actor.IsProvider():
		if providerID != "" && providerID != actor.UserID {
			return nil, apperr.Forbidden("providers can only create their own jobs")
		}
		providerID = actor.UserID
	case actor.IsAdmin():
	default:
		return nil, apperr.Forbidden("only providers and admins can create jobs")
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.StartDate = normDate(in.StartDate)
	in.EndDate = normDate(in.EndDate)

	fields := map[string]string{}
	if providerID == "" {
		fields["providerId"] = "is required"
	}
	if n := utf8.RuneCountInString(in.Title); n < 5 || n > 200 {
		fields["title"] = "must be between 5 and 200 characters"
	}
	if n := utf8.RuneCountInString(in.Description); n < 10 || n > 2000 {
		fields["description"] = "must be between 10 and 2000 characters"
	}
	if utf8.RuneCountInString(in.Location) > 200 {
		fields["location"] = "must be at most 200 characters"
	}
	if in.Salary != nil && *in.Salary < 0 {
		fields["salary"] = "must not be negative"
	}
	if !domain.DatesValid(in.StartDate, in.EndDate) {
		fields["endDate"] = "must not be before startDate"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid job", fields)
	}

	now := s.clock.Now()
	job := &domain.Job{
		ID:          uuid.NewString(),
		ProviderID:  providerID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Salary:      in.Salary,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      domain.JobOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, apperr.Unexpected("create job", err)
	}
	s.log.Info("job created", "jobId", job.ID, "providerId", providerID)
	return job, nil
}

// Get returns any job by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrJobNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("get job", err)
	}
	return job, nil
}

// ListOpen returns the jobs accepting applications, after closing any whose
// end date has passed. Jobs that expired since the last throttled sweep are
// left out even though their row still says Open.
func (s *Service) ListOpen(ctx context.Context) ([]domain.Job, error) {
	s.sweepIfDue(ctx)
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{Status: domain.JobOpen})
	if err != nil {
		return nil, apperr.Unexpected("list open jobs", err)
	}
	today := clock.Today(s.clock)
	return slices.DeleteFunc(jobs, func(j domain.Job) bool { return j.ExpiredOn(today) }), nil
}

// ListByProvider returns the caller's jobs, or every job for an admin.
func (s *Service) ListByProvider(ctx context.Context, actor domain.Actor) ([]domain.Job, error) {
	var f store.JobFilter
	switch {
	case actor.IsAdmin():
	case actor.IsProvider():
		f.ProviderID = actor.UserID
	default:
		return nil, apperr.Forbidden("only providers and admins can list provider jobs")
	}
	jobs, err := s.store.ListJobs(ctx, f)
	if err != nil {
		return nil, apperr.Unexpected("list provider jobs", err)
	}
	return jobs, nil
}

// UpdateDates replaces the start and/or end date. A nil argument leaves that
// date unchanged.
func (s *Service) UpdateDates(ctx context.Context, actor domain.Actor, jobID string, start, end *time.Time) (*domain.Job, error) {
	return s.mutate(ctx, actor, jobID, func(job *domain.Job, _ time.Time) error {
		if job.Status == domain.JobInactive {
			return apperr.ErrJobInactive
		}
		if start != nil {
			job.StartDate = normDate(start)
		}
		if end != nil {
			job.EndDate = normDate(end)
		}
		if !domain.DatesValid(job.StartDate, job.EndDate) {
			return apperr.Validation("invalid job dates", map[string]string{"endDate": "must not be before startDate"})
		}
		return nil
	})
}

// Open marks the job Open, optionally moving its end date first. It fails
// when the job is Inactive or the resulting end date is already past.
func (s *Service) Open(ctx context.Context, actor domain.Actor, jobID string, endDate *time.Time) (*domain.Job, error) {
	return s.mutate(ctx, actor, jobID, func(job *domain.Job, now time.Time) error {
		if job.Status == domain.JobInactive {
			return apperr.ErrJobInactive
		}
		if endDate != nil {
			job.EndDate = normDate(endDate)
			if !domain.DatesValid(job.StartDate, job.EndDate) {
				return apperr.Validation("invalid job dates", map[string]string{"endDate": "must not be before startDate"})
			}
		}
		if job.ExpiredOn(clock.DateOf(now, s.clock.Location())) {
			return apperr.ErrJobExpired
		}
		job.Status = domain.JobOpen
		return nil
	})
}

// Close stops a job accepting applications. Existing assignments and
// attendance are untouched.
func (s *Service) Close(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	return s.mutate(ctx, actor, jobID, func(job *domain.Job, _ time.Time) error {
		switch job.Status {
		case domain.JobClosed:
			return apperr.ErrAlreadyClosed
		case domain.JobInactive:
			return apperr.ErrJobInactive
		}
		job.Status = domain.JobClosed
		return nil
	})
}

// Reopen moves a Closed job back to Open. A job whose end date is already
// past stays closed until the date is extended.
func (s *Service) Reopen(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	return s.mutate(ctx, actor, jobID, func(job *domain.Job, now time.Time) error {
		switch job.Status {
		case domain.JobOpen:
			return apperr.ErrAlreadyOpen
		case domain.JobInactive:
			return apperr.ErrJobInactive
		}
		if job.ExpiredOn(clock.DateOf(now, s.clock.Location())) {
			return apperr.ErrJobExpired.WithMessage(
				"job ended on %s; extend the end date before reopening", job.EndDate.Format(time.DateOnly))
		}
		job.Status = domain.JobOpen
		return nil
	})
}

// Deactivate soft-deletes a job. Admin only; nothing leaves Inactive.
func (s *Service) Deactivate(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only admins can deactivate jobs")
	}
	return s.mutate(ctx, actor, jobID, func(job *domain.Job, _ time.Time) error {
		if !domain.CanTransitionJob(job.Status, domain.JobInactive) {
			return apperr.ErrJobInactive
		}
		job.Status = domain.JobInactive
		return nil
	})
}

// mutate loads and row-locks a job the actor manages, applies fn and
// persists the result in one transaction. The lock serialises it against
// other mutations and the sweep's conditional close.
func (s *Service) mutate(ctx context.Context, actor domain.Actor, jobID string, fn func(job *domain.Job, now time.Time) error) (*domain.Job, error) {
	var out *domain.Job
	err := s.store.WithTx(ctx, func(tx store.Repository) error {
		job, err := tx.GetJobForUpdate(ctx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrJobNotFound
		}
		if err != nil {
			return apperr.Unexpected("load job", err)
		}
		if !actor.CanManageJob(job) {
			return apperr.Forbidden("you do not manage this job")
		}

		from := job.Status
		now := s.clock.Now()
		if err := fn(job, now); err != nil {
			return err
		}
		job.UpdatedAt = now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return apperr.Unexpected("update job", err)
		}
		if from != job.Status {
			s.log.Info("job status changed", "jobId", job.ID, "from", from, "to", job.Status, "by", actor.UserID)
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// normDate strips the time of day, keeping the calendar date as written.
func normDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	n := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &n
}
