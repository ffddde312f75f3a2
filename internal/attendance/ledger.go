// Package attendance is the check-in/check-out ledger. A student may check in
// to a job only while assigned to it, at most once per job per calendar day,
// and check out of each record once.
package attendance

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
	"jobmate/workforce-service/internal/store"
)

// Ledger records attendance.
type Ledger struct {
	store       store.Store
	clock       clock.Clock
	assignments *assignments.Registry
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func NewLedger(st store.Store, clk clock.Clock, reg *assignments.Registry, log *slog.Logger, m *metrics.Metrics) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: st, clock: clk, assignments: reg, log: log, metrics: m}
}

// CheckIn opens today's record for the calling student on jobID.
// Preconditions are checked in order: the job exists, the student is
// assigned, and there is no record for today yet.
func (l *Ledger) CheckIn(ctx context.Context, actor domain.Actor, jobID string) (*domain.AttendanceRecord, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can check in")
	}

	var rec *domain.AttendanceRecord
	err := l.store.WithTx(ctx, func(tx store.Repository) error {
		if _, err := tx.GetJob(ctx, jobID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.ErrJobNotFound
			}
			return apperr.Unexpected("load job", err)
		}

		active, err := l.assignments.IsActiveTx(ctx, tx, actor.UserID, jobID)
		if err != nil {
			return err
		}
		if !active {
			return l.notAssigned(ctx, tx, actor.UserID, jobID)
		}

		now := l.clock.Now()
		today := clock.DateOf(now, l.clock.Location())
		_, err = tx.FindAttendanceOnDay(ctx, actor.UserID, jobID, today)
		if err == nil {
			return apperr.ErrAlreadyCheckedInToday
		}
		if !errors.Is(err, store.ErrNotFound) {
			return apperr.Unexpected("find today's check-in", err)
		}

		rec = &domain.AttendanceRecord{
			ID:          uuid.NewString(),
			StudentID:   actor.UserID,
			JobID:       jobID,
			CheckinDate: today,
			CheckinTime: now,
		}
		if err := tx.CreateAttendance(ctx, rec); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.ErrAlreadyCheckedInToday
			}
			return apperr.Unexpected("create check-in", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.Attendance("checkin")
	l.log.Info("checked in", "recordId", rec.ID, "studentId", rec.StudentID, "jobId", jobID)
	return rec, nil
}

// notAssigned builds a NotAssigned error naming where the application stands.
func (l *Ledger) notAssigned(ctx context.Context, tx store.Repository, studentID, jobID string) error {
	app, err := tx.FindApplication(ctx, studentID, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNotAssigned.WithMessage("you have not applied to this job")
	}
	if err != nil {
		return apperr.Unexpected("find application", err)
	}
	return apperr.ErrNotAssigned.WithMessage(
		"you are not assigned to this job (application status: %s)", app.Status)
}

// CheckOut closes a record the calling student owns.
func (l *Ledger) CheckOut(ctx context.Context, actor domain.Actor, recordID string) (*domain.AttendanceRecord, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can check out")
	}

	var rec *domain.AttendanceRecord
	err := l.store.WithTx(ctx, func(tx store.Repository) error {
		var err error
		rec, err = tx.GetAttendance(ctx, recordID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrRecordNotFound
		}
		if err != nil {
			return apperr.Unexpected("load check-in", err)
		}
		if rec.StudentID != actor.UserID {
			return apperr.ErrRecordNotFound
		}
		if !rec.Open() {
			return apperr.ErrAlreadyCheckedOut
		}

		now := l.clock.Now()
		if now.Before(rec.CheckinTime) {
			return apperr.ErrInvalidTimeRange
		}
		changed, err := tx.SetCheckout(ctx, rec.ID, now)
		if err != nil {
			return apperr.Unexpected("set checkout", err)
		}
		if !changed {
			return apperr.ErrAlreadyCheckedOut
		}
		rec.CheckoutTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.Attendance("checkout")
	l.log.Info("checked out", "recordId", rec.ID, "studentId", rec.StudentID, "hours", *rec.WorkedHours())
	return rec, nil
}

// CurrentCheckin returns the calling student's most recent open record, or
// nil when they are not checked in anywhere.
func (l *Ledger) CurrentCheckin(ctx context.Context, actor domain.Actor) (*domain.AttendanceRecord, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students have a current check-in")
	}
	recs, err := l.list(ctx, store.AttendanceFilter{StudentID: actor.UserID, OpenOnly: true})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// ListMine returns the calling student's records.
func (l *Ledger) ListMine(ctx context.Context, actor domain.Actor) ([]domain.AttendanceRecord, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students have their own attendance")
	}
	return l.list(ctx, store.AttendanceFilter{StudentID: actor.UserID})
}

// ListForJob returns a job's records to its owner or an admin.
func (l *Ledger) ListForJob(ctx context.Context, actor domain.Actor, jobID string) ([]domain.AttendanceRecord, error) {
	job, err := l.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrJobNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("load job", err)
	}
	if !actor.CanManageJob(job) {
		return nil, apperr.Forbidden("you do not manage this job")
	}
	return l.list(ctx, store.AttendanceFilter{JobID: jobID})
}

// ListForStudent returns one student's records. Providers only see records
// on jobs they own.
func (l *Ledger) ListForStudent(ctx context.Context, actor domain.Actor, studentID string) ([]domain.AttendanceRecord, error) {
	f := store.AttendanceFilter{StudentID: studentID}
	switch {
	case actor.IsAdmin():
	case actor.IsProvider():
		f.ProviderID = actor.UserID
	case actor.IsStudent() && actor.UserID == studentID:
	default:
		return nil, apperr.Forbidden("you cannot view this student's attendance")
	}
	return l.list(ctx, f)
}

// ListForProvider returns every record across the caller's jobs, or every
// record for an admin.
func (l *Ledger) ListForProvider(ctx context.Context, actor domain.Actor) ([]domain.AttendanceRecord, error) {
	var f store.AttendanceFilter
	switch {
	case actor.IsAdmin():
	case actor.IsProvider():
		f.ProviderID = actor.UserID
	default:
		return nil, apperr.Forbidden("only providers and admins can list attendance")
	}
	return l.list(ctx, f)
}

// Get returns one record to its student, the job's provider or an admin.
func (l *Ledger) Get(ctx context.Context, actor domain.Actor, recordID string) (*domain.AttendanceRecord, error) {
	rec, err := l.store.GetAttendance(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("load check-in", err)
	}
	if actor.IsAdmin() || (actor.IsStudent() && actor.UserID == rec.StudentID) {
		return rec, nil
	}
	if actor.IsProvider() {
		job, err := l.store.GetJob(ctx, rec.JobID)
		if err == nil && actor.CanManageJob(job) {
			return rec, nil
		}
	}
	return nil, apperr.Forbidden("you cannot view this record")
}

func (l *Ledger) list(ctx context.Context, f store.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	recs, err := l.store.ListAttendance(ctx, f)
	if err != nil {
		return nil, apperr.Unexpected("list attendance", err)
	}
	return recs, nil
}
