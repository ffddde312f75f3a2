package jobs

import (
	"context"
	"time"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/store"
)

// SweepReport lists what one sweep did. Failed maps job id to the error that
// kept it open.
type SweepReport struct {
	AsOf   time.Time         `json:"asOf"`
	Closed []string          `json:"closed"`
	Failed map[string]string `json:"failed,omitempty"`
}

// SweepExpired closes every Open job whose end date is before asOf. Each job
// is closed by its own conditional update, so a failure on one job leaves the
// others closed and a job closed concurrently by another caller is skipped.
// Running it twice for the same date closes nothing the second time.
func (s *Service) SweepExpired(ctx context.Context, asOf time.Time) (*SweepReport, error) {
	asOf = *normDate(&asOf)
	expired, err := s.store.ListJobs(ctx, store.JobFilter{Status: domain.JobOpen, EndBefore: &asOf})
	if err != nil {
		return nil, apperr.Unexpected("list expired jobs", err)
	}

	report := &SweepReport{AsOf: asOf, Closed: make([]string, 0, len(expired))}
	now := s.clock.Now()
	for _, job := range expired {
		changed, err := s.store.CloseJobIfOpen(ctx, job.ID, now)
		if err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[job.ID] = err.Error()
			s.log.Warn("sweep: close job failed", "jobId", job.ID, "err", err)
			continue
		}
		if changed {
			report.Closed = append(report.Closed, job.ID)
		}
	}

	s.metrics.Sweep(len(report.Closed), len(report.Failed))
	if len(report.Closed) > 0 || len(report.Failed) > 0 {
		s.log.Info("expired jobs swept",
			"asOf", asOf.Format(time.DateOnly), "closed", len(report.Closed), "failed", len(report.Failed))
	}
	return report, nil
}

// SweepToday runs SweepExpired for the current calendar date.
func (s *Service) SweepToday(ctx context.Context) (*SweepReport, error) {
	return s.SweepExpired(ctx, clock.Today(s.clock))
}

// sweepIfDue runs the sweep when the gate admits it. Errors are logged: a
// failed sweep must not fail the listing that triggered it.
func (s *Service) sweepIfDue(ctx context.Context) {
	if s.gate != nil && !s.gate.Acquire(ctx, sweepKey, s.sweepEvery) {
		return
	}
	if _, err := s.SweepToday(ctx); err != nil {
		s.log.Warn("opportunistic sweep failed", "err", err)
	}
}
