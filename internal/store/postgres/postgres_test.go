package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/db"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/jobs"
	"jobmate/workforce-service/internal/store"
	"jobmate/workforce-service/internal/store/postgres"
)

// openStore connects to DATABASE_URL and applies the schema. Rows are keyed
// by fresh uuids so the tests never touch existing data.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPostgresPool(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	return postgres.New(pool)
}

func seedJob(t *testing.T, st *postgres.Store, providerID string) *domain.Job {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &domain.Job{
		ID: uuid.NewString(), ProviderID: providerID, Title: "Stock counter",
		Status: domain.JobOpen, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

func TestApplications_OnePerStudentAndJob(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	job := seedJob(t, st, "prov-"+uuid.NewString())
	now := time.Now().UTC()

	app := &domain.Application{
		ID: uuid.NewString(), StudentID: "stu-" + uuid.NewString(), JobID: job.ID,
		Status: domain.ApplicationPending, AppliedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CreateApplication(ctx, app))

	dup := *app
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, st.CreateApplication(ctx, &dup), store.ErrConflict)

	got, err := st.FindApplication(ctx, app.StudentID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)

	_, err = st.GetApplication(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAttendance_OncePerDayAndSingleCheckout(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	job := seedJob(t, st, "prov-"+uuid.NewString())
	studentID := "stu-" + uuid.NewString()
	in := time.Date(2026, 5, 4, 2, 0, 0, 0, time.UTC)

	rec := &domain.AttendanceRecord{
		ID: uuid.NewString(), StudentID: studentID, JobID: job.ID,
		CheckinDate: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), CheckinTime: in,
	}
	require.NoError(t, st.CreateAttendance(ctx, rec))

	again := *rec
	again.ID = uuid.NewString()
	assert.ErrorIs(t, st.CreateAttendance(ctx, &again), store.ErrConflict)

	found, err := st.FindAttendanceOnDay(ctx, studentID, job.ID, rec.CheckinDate)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	ok, err := st.SetCheckout(ctx, rec.ID, in.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.SetCheckout(ctx, rec.ID, in.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "the first checkout wins")

	stored, err := st.GetAttendance(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CheckoutTime)
	assert.True(t, in.Add(4*time.Hour).Equal(*stored.CheckoutTime))
}

func TestCloseJobIfOpen_IsConditional(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	job := seedJob(t, st, "prov-"+uuid.NewString())

	closed, err := st.CloseJobIfOpen(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = st.CloseJobIfOpen(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobClosed, got.Status)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	job := seedJob(t, st, "prov-"+uuid.NewString())
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Repository) error {
		locked, err := tx.GetJobForUpdate(ctx, job.ID)
		require.NoError(t, err)
		locked.Title = "Renamed"
		require.NoError(t, tx.UpdateJob(ctx, locked))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stock counter", got.Title)

	_, err = st.GetJobForUpdate(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentClose_OneWinner(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	providerID := "prov-" + uuid.NewString()
	job := seedJob(t, st, providerID)
	svc := jobs.NewService(st, clock.NewFixed(time.Now()), nil, nil)
	actor := domain.Actor{UserID: providerID, Role: domain.RoleProvider}

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Close(ctx, actor, job.ID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrAlreadyClosed):
			already++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, already)
}

func TestGetApplicationForUpdate_SerialisesDecisions(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	job := seedJob(t, st, "prov-"+uuid.NewString())
	now := time.Now().UTC()
	app := &domain.Application{
		ID: uuid.NewString(), StudentID: "stu-" + uuid.NewString(), JobID: job.ID,
		Status: domain.ApplicationPending, AppliedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CreateApplication(ctx, app))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- st.WithTx(ctx, func(tx store.Repository) error {
			if _, err := tx.GetApplicationForUpdate(ctx, app.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return tx.UpdateApplicationStatus(ctx, app.ID, domain.ApplicationApproved, now)
		})
	}()
	<-locked

	seen := make(chan domain.ApplicationStatus, 1)
	go func() {
		_ = st.WithTx(ctx, func(tx store.Repository) error {
			got, err := tx.GetApplicationForUpdate(ctx, app.ID)
			if err != nil {
				return err
			}
			seen <- got.Status
			return nil
		})
	}()

	select {
	case <-seen:
		t.Fatal("second locker read the row while the first transaction held it")
	case <-time.After(200 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.ApplicationApproved, <-seen)
}
