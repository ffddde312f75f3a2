package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/jobs"
	"jobmate/workforce-service/internal/ratelimit"
	"jobmate/workforce-service/internal/store"
)

var (
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	provider = domain.Actor{UserID: "prov-1", Role: domain.RoleProvider}
	other    = domain.Actor{UserID: "prov-2", Role: domain.RoleProvider}
	student  = domain.Actor{UserID: "stu-1", Role: domain.RoleStudent}
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type fixture struct {
	svc   *jobs.Service
	store *store.Memory
	clock *clock.Fixed
}

func newFixture() *fixture {
	st := store.NewMemory()
	clk := clock.NewFixed(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	return &fixture{svc: jobs.NewService(st, clk, nil, nil), store: st, clock: clk}
}

func (f *fixture) create(t *testing.T, end *time.Time) *domain.Job {
	t.Helper()
	job, err := f.svc.Create(context.Background(), provider, jobs.CreateInput{
		Title:       "Weekend barista",
		Description: "Serve coffee at the Saturday market stall.",
		Location:    "District 1",
		StartDate:   date(2026, 5, 1),
		EndDate:     end,
	})
	require.NoError(t, err)
	return job
}

func TestCreate_ValidationEnumeratesFields(t *testing.T) {
	f := newFixture()
	salary := -1.0
	_, err := f.svc.Create(context.Background(), provider, jobs.CreateInput{
		Title:       "abc",
		Description: "short",
		Salary:      &salary,
		StartDate:   date(2026, 5, 10),
		EndDate:     date(2026, 5, 1),
	})

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Fields, "title")
	assert.Contains(t, ae.Fields, "description")
	assert.Contains(t, ae.Fields, "salary")
	assert.Contains(t, ae.Fields, "endDate")
}

func TestCreate_Authority(t *testing.T) {
	f := newFixture()
	in := jobs.CreateInput{Title: "Weekend barista", Description: "Serve coffee at the market."}

	_, err := f.svc.Create(context.Background(), student, in)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.Create(context.Background(), admin, in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "admin must name a provider")

	in.ProviderID = "prov-9"
	job, err := f.svc.Create(context.Background(), admin, in)
	require.NoError(t, err)
	assert.Equal(t, "prov-9", job.ProviderID)
	assert.Equal(t, domain.JobOpen, job.Status)
}

func TestSweepExpired_ClosesOnlyPastEndDates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	yesterday := f.create(t, date(2026, 5, 3))
	today := f.create(t, date(2026, 5, 4))
	open := f.create(t, nil)

	report, err := f.svc.SweepExpired(ctx, *date(2026, 5, 4))
	require.NoError(t, err)
	assert.Equal(t, []string{yesterday.ID}, report.Closed)
	assert.Empty(t, report.Failed)

	for id, want := range map[string]domain.JobStatus{
		yesterday.ID: domain.JobClosed, today.ID: domain.JobOpen, open.ID: domain.JobOpen,
	} {
		job, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, job.Status, id)
	}

	again, err := f.svc.SweepExpired(ctx, *date(2026, 5, 4))
	require.NoError(t, err)
	assert.Empty(t, again.Closed, "a second sweep for the same date changes nothing")
}

func TestListOpen_SweepsFirst(t *testing.T) {
	f := newFixture()
	expired := f.create(t, date(2026, 5, 1))
	live := f.create(t, date(2026, 6, 1))

	open, err := f.svc.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, live.ID, open[0].ID)

	job, err := f.svc.Get(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobClosed, job.Status)
}

func TestListOpen_ThrottledSweepHidesJobsExpiredAtMidnight(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.clock.Set(time.Date(2026, 5, 4, 23, 59, 50, 0, time.UTC))
	f.svc.WithSweepGate(ratelimit.NewMemoryGate(f.clock), time.Minute)
	job := f.create(t, date(2026, 5, 4))

	open, err := f.svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1, "the end date is today, so the job is still open")

	// Past midnight, but still inside the throttle window: no sweep runs.
	f.clock.Advance(20 * time.Second)
	open, err = f.svc.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	stored, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobOpen, stored.Status, "the row waits for the next sweep")

	f.clock.Advance(time.Minute)
	_, err = f.svc.ListOpen(ctx)
	require.NoError(t, err)
	stored, err = f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobClosed, stored.Status)
}

// lockRecorder records which job rows a transaction locked.
type lockRecorder struct {
	*store.Memory
	locked []string
}

func (l *lockRecorder) WithTx(ctx context.Context, fn func(tx store.Repository) error) error {
	return l.Memory.WithTx(ctx, func(tx store.Repository) error {
		return fn(&lockingTx{Repository: tx, rec: l})
	})
}

type lockingTx struct {
	store.Repository
	rec *lockRecorder
}

func (t *lockingTx) GetJobForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	t.rec.locked = append(t.rec.locked, id)
	return t.Repository.GetJobForUpdate(ctx, id)
}

func TestMutations_LockTheJobRow(t *testing.T) {
	ctx := context.Background()
	rec := &lockRecorder{Memory: store.NewMemory()}
	clk := clock.NewFixed(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	svc := jobs.NewService(rec, clk, nil, nil)
	require.NoError(t, rec.CreateJob(ctx, &domain.Job{ID: "job-1", ProviderID: "prov-1", Title: "Usher", Status: domain.JobOpen}))

	_, err := svc.Close(ctx, provider, "job-1")
	require.NoError(t, err)
	_, err = svc.Close(ctx, provider, "job-1")
	assert.ErrorIs(t, err, apperr.ErrAlreadyClosed)
	_, err = svc.UpdateDates(ctx, provider, "job-1", nil, date(2026, 6, 1))
	require.NoError(t, err)

	assert.Equal(t, []string{"job-1", "job-1", "job-1"}, rec.locked)
}

func TestCloseAndReopen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	job := f.create(t, date(2026, 6, 1))

	_, err := f.svc.Reopen(ctx, provider, job.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyOpen)

	closed, err := f.svc.Close(ctx, provider, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobClosed, closed.Status)

	_, err = f.svc.Close(ctx, provider, job.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyClosed)

	_, err = f.svc.Close(ctx, other, job.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	reopened, err := f.svc.Reopen(ctx, admin, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobOpen, reopened.Status)
}

func TestReopen_ExpiredNeedsNewEndDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	job := f.create(t, date(2026, 5, 2))
	_, err := f.svc.SweepToday(ctx)
	require.NoError(t, err)

	_, err = f.svc.Reopen(ctx, provider, job.ID)
	assert.ErrorIs(t, err, apperr.ErrJobExpired)

	_, err = f.svc.Open(ctx, provider, job.ID, date(2026, 5, 3))
	assert.ErrorIs(t, err, apperr.ErrJobExpired, "the new end date is still in the past")

	opened, err := f.svc.Open(ctx, provider, job.ID, date(2026, 5, 31))
	require.NoError(t, err)
	assert.Equal(t, domain.JobOpen, opened.Status)
	assert.Equal(t, *date(2026, 5, 31), *opened.EndDate)
}

func TestUpdateDates_EnforcesOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	job := f.create(t, date(2026, 6, 1))

	_, err := f.svc.UpdateDates(ctx, provider, job.ID, nil, date(2026, 4, 1))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, *date(2026, 6, 1), *stored.EndDate, "a rejected edit leaves the job untouched")

	updated, err := f.svc.UpdateDates(ctx, provider, job.ID, nil, date(2026, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, *date(2026, 7, 1), *updated.EndDate)
}

func TestDeactivate_AdminOnlyAndTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	job := f.create(t, nil)

	_, err := f.svc.Deactivate(ctx, provider, job.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	inactive, err := f.svc.Deactivate(ctx, admin, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobInactive, inactive.Status)

	_, err = f.svc.Reopen(ctx, admin, job.ID)
	assert.ErrorIs(t, err, apperr.ErrJobInactive)
	_, err = f.svc.Open(ctx, admin, job.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrJobInactive)
	_, err = f.svc.Deactivate(ctx, admin, job.ID)
	assert.ErrorIs(t, err, apperr.ErrJobInactive)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
}
