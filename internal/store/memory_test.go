package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/store"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func seedJob(t *testing.T, m *store.Memory, id, provider string) {
	t.Helper()
	require.NoError(t, m.CreateJob(context.Background(), &domain.Job{
		ID: id, ProviderID: provider, Title: "Barista", Status: domain.JobOpen, CreatedAt: t0,
	}))
}

func TestMemory_ApplicationUniquePair(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedJob(t, m, "job-1", "prov-1")

	app := &domain.Application{ID: "app-1", StudentID: "stu-1", JobID: "job-1", Status: domain.ApplicationPending, AppliedAt: t0}
	require.NoError(t, m.CreateApplication(ctx, app))

	dup := &domain.Application{ID: "app-2", StudentID: "stu-1", JobID: "job-1", Status: domain.ApplicationPending, AppliedAt: t0}
	assert.ErrorIs(t, m.CreateApplication(ctx, dup), store.ErrConflict)

	_, err := m.GetApplication(ctx, "app-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedJob(t, m, "job-1", "prov-1")

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx store.Repository) error {
		if err := tx.CreateAssignment(ctx, &domain.Assignment{ID: "as-1", StudentID: "stu-1", JobID: "job-1", Status: domain.AssignmentActive}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.GetAssignment(ctx, "stu-1", "job-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "a failed transaction must leave no partial state")
}

func TestMemory_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedJob(t, m, "job-1", "prov-1")

	require.NoError(t, m.WithTx(ctx, func(tx store.Repository) error {
		return tx.CreateAssignment(ctx, &domain.Assignment{ID: "as-1", StudentID: "stu-1", JobID: "job-1", Status: domain.AssignmentActive})
	}))

	got, err := m.GetAssignment(ctx, "stu-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "as-1", got.ID)
}

func TestMemory_AttendanceOncePerDay(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.CreateAttendance(ctx, &domain.AttendanceRecord{ID: "r1", StudentID: "s", JobID: "j", CheckinDate: day, CheckinTime: t0}))
	err := m.CreateAttendance(ctx, &domain.AttendanceRecord{ID: "r2", StudentID: "s", JobID: "j", CheckinDate: day, CheckinTime: t0.Add(time.Hour)})
	assert.ErrorIs(t, err, store.ErrConflict)

	next := day.AddDate(0, 0, 1)
	assert.NoError(t, m.CreateAttendance(ctx, &domain.AttendanceRecord{ID: "r3", StudentID: "s", JobID: "j", CheckinDate: next, CheckinTime: t0.Add(24 * time.Hour)}))
}

func TestMemory_SetCheckoutOnlyOnce(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateAttendance(ctx, &domain.AttendanceRecord{ID: "r1", StudentID: "s", JobID: "j", CheckinTime: t0}))

	changed, err := m.SetCheckout(ctx, "r1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.SetCheckout(ctx, "r1", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	rec, err := m.GetAttendance(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), *rec.CheckoutTime)
}

func TestMemory_CloseJobIfOpen(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedJob(t, m, "job-1", "prov-1")

	changed, err := m.CloseJobIfOpen(ctx, "job-1", t0)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.CloseJobIfOpen(ctx, "job-1", t0)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMemory_ProviderStatistics(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedJob(t, m, "job-1", "prov-1")
	seedJob(t, m, "job-2", "prov-1")
	seedJob(t, m, "job-3", "prov-2")
	_, _ = m.CloseJobIfOpen(ctx, "job-2", t0)

	require.NoError(t, m.CreateApplication(ctx, &domain.Application{ID: "a1", StudentID: "s1", JobID: "job-1", Status: domain.ApplicationPending}))
	require.NoError(t, m.CreateApplication(ctx, &domain.Application{ID: "a2", StudentID: "s2", JobID: "job-1", Status: domain.ApplicationApproved}))
	require.NoError(t, m.CreateApplication(ctx, &domain.Application{ID: "a3", StudentID: "s1", JobID: "job-3", Status: domain.ApplicationPending}))
	require.NoError(t, m.CreateAssignment(ctx, &domain.Assignment{ID: "as1", StudentID: "s2", JobID: "job-1"}))

	st, err := m.ProviderStatistics(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, &domain.ProviderStatistics{
		ProviderID: "prov-1", TotalJobs: 2, OpenJobs: 1, ClosedJobs: 1,
		TotalApplications: 2, PendingApplications: 1, TotalAssignedStudents: 1,
	}, st)
}
