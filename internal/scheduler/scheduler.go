// Package scheduler runs the periodic expiry sweep on a cron spec.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/workforce-service/internal/jobs"
	"jobmate/workforce-service/internal/ratelimit"
)

// lockKey is the gate key that keeps replicas from sweeping the same tick.
const lockKey = "scheduler:sweep"

// Sweeper closes expired jobs for the current date.
type Sweeper interface {
	SweepToday(ctx context.Context) (*jobs.SweepReport, error)
}

// Scheduler wraps robfig/cron and manages the sweep loop.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	gate    ratelimit.Gate
	spec    string
	hold    time.Duration
	log     *slog.Logger
}

// New creates a Scheduler that fires on spec (e.g. "@every 1h") in loc.
// gate may be nil; with a shared gate only one replica sweeps per tick.
func New(sweeper Sweeper, spec string, loc *time.Location, gate ratelimit.Gate, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		gate:    gate,
		spec:    spec,
		hold:    30 * time.Second,
		log:     log.With("component", "scheduler"),
	}
}

// Start registers the sweep and starts the scheduler. It also runs one sweep
// immediately so jobs that expired while the service was down are closed
// without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runSweep(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", "spec", s.spec)

	go s.runSweep(ctx)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.gate != nil && !s.gate.Acquire(ctx, lockKey, s.hold) {
		s.log.Debug("sweep skipped: another instance holds the tick")
		return
	}

	report, err := s.sweeper.SweepToday(ctx)
	if err != nil {
		s.log.Error("sweep failed", "err", err)
		return
	}
	s.log.Info("sweep complete",
		"asOf", report.AsOf.Format(time.DateOnly), "closed", len(report.Closed), "failed", len(report.Failed))
}
