package assignments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/assignments"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/store"
)

var (
	provider = domain.Actor{UserID: "prov-1", Role: domain.RoleProvider}
	stranger = domain.Actor{UserID: "prov-2", Role: domain.RoleProvider}
)

func setup(t *testing.T) (*assignments.Registry, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	clk := clock.NewFixed(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, st.CreateJob(context.Background(), &domain.Job{ID: "job-1", ProviderID: "prov-1", Status: domain.JobOpen}))
	return assignments.NewRegistry(st, clk, nil, nil, nil), st
}

func TestEnsure_IsIdempotent(t *testing.T) {
	reg, _ := setup(t)
	ctx := context.Background()

	first, err := reg.Ensure(ctx, "stu-1", "job-1")
	require.NoError(t, err)
	second, err := reg.Ensure(ctx, "stu-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	active, err := reg.IsActive(ctx, "stu-1", "job-1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = reg.IsActive(ctx, "stu-2", "job-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRevoke_ForcesApplicationRejected(t *testing.T) {
	reg, st := setup(t)
	ctx := context.Background()
	require.NoError(t, st.CreateApplication(ctx, &domain.Application{
		ID: "app-1", StudentID: "stu-1", JobID: "job-1", Status: domain.ApplicationApproved,
	}))
	_, err := reg.Ensure(ctx, "stu-1", "job-1")
	require.NoError(t, err)

	err = reg.Revoke(ctx, stranger, "stu-1", "job-1")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, reg.Revoke(ctx, provider, "stu-1", "job-1"))

	active, err := reg.IsActive(ctx, "stu-1", "job-1")
	require.NoError(t, err)
	assert.False(t, active)

	app, err := st.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationRejected, app.Status)

	err = reg.Revoke(ctx, provider, "stu-1", "job-1")
	assert.ErrorIs(t, err, apperr.ErrAssignmentNotFound)
}

func TestListForJob_OwnerOnly(t *testing.T) {
	reg, _ := setup(t)
	ctx := context.Background()
	_, err := reg.Ensure(ctx, "stu-1", "job-1")
	require.NoError(t, err)

	list, err := reg.ListForJob(ctx, provider, "job-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = reg.ListForJob(ctx, stranger, "job-1")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = reg.ListForJob(ctx, provider, "missing")
	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
}

// racingTx behaves as if another transaction inserted the same assignment
// between the existence check and the insert.
type racingTx struct {
	store.Repository
}

func (racingTx) CreateAssignment(context.Context, *domain.Assignment) error {
	return store.ErrConflict
}

func TestEnsureTx_ConcurrentCreateIsNamedConflict(t *testing.T) {
	reg, st := setup(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx store.Repository) error {
		_, _, err := reg.EnsureTx(ctx, racingTx{Repository: tx}, "stu-1", "job-1", time.Now())
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrAssignmentConflict)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}
