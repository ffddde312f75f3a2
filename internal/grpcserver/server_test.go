package grpcserver_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"jobmate/workforce-service/internal/applications"
	"jobmate/workforce-service/internal/assignments"
	"jobmate/workforce-service/internal/attendance"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/grpcserver"
	"jobmate/workforce-service/internal/jobs"
	"jobmate/workforce-service/internal/store"
)

type env struct {
	conn  *grpc.ClientConn
	store *store.Memory
	clock *clock.Fixed
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	clk := clock.NewFixed(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	reg := assignments.NewRegistry(st, clk, nil, nil, nil)
	srv := grpcserver.NewServer(
		applications.NewService(st, clk, reg, nil, nil, nil),
		reg,
		attendance.NewLedger(st, clk, reg, nil, nil),
		jobs.NewService(st, clk, nil, nil),
		time.UTC,
	)

	lis := bufconn.Listen(1 << 20)
	gs := grpcserver.New(srv, nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateJob(context.Background(), &domain.Job{
		ID: "job-1", ProviderID: "prov-1", Title: "Event staff", Status: domain.JobOpen,
	}))
	require.NoError(t, st.CreateJob(context.Background(), &domain.Job{
		ID: "job-old", ProviderID: "prov-1", Title: "Spring fair", Status: domain.JobOpen, EndDate: &end,
	}))
	return &env{conn: conn, store: st, clock: clk}
}

func as(userID, role string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-user-id", userID, "x-user-role", role)
}

func (e *env) call(ctx context.Context, method string, req, resp any) error {
	return e.conn.Invoke(ctx, "/"+grpcserver.ServiceName+"/"+method, req, resp, grpc.CallContentSubtype(grpcserver.CodecName))
}

func TestWorkflowOverGRPC(t *testing.T) {
	e := newEnv(t)
	student := as("stu-1", "student")

	var app domain.Application
	require.NoError(t, e.call(student, "SubmitApplication", &grpcserver.SubmitApplicationRequest{JobID: "job-1"}, &app))
	assert.Equal(t, domain.ApplicationPending, app.Status)

	var decided domain.Application
	require.NoError(t, e.call(as("prov-1", "Provider"), "DecideApplication",
		&grpcserver.DecideApplicationRequest{ApplicationID: app.ID, Status: "approved"}, &decided))
	assert.Equal(t, domain.ApplicationApproved, decided.Status)

	var rec domain.AttendanceRecord
	require.NoError(t, e.call(student, "CheckIn", &grpcserver.CheckInRequest{JobID: "job-1"}, &rec))
	require.NotEmpty(t, rec.ID)

	var current grpcserver.CurrentCheckinResponse
	require.NoError(t, e.call(student, "CurrentCheckin", &grpcserver.CurrentCheckinRequest{}, &current))
	require.NotNil(t, current.Record)
	assert.Equal(t, rec.ID, current.Record.ID)

	e.clock.Set(time.Date(2026, 5, 4, 17, 30, 0, 0, time.UTC))
	var out domain.AttendanceRecord
	require.NoError(t, e.call(student, "CheckOut", &grpcserver.CheckOutRequest{CheckinID: rec.ID}, &out))
	require.NotNil(t, out.CheckoutTime)
	assert.Equal(t, 8.5, *out.WorkedHours())

	err := e.call(student, "CheckIn", &grpcserver.CheckInRequest{JobID: "job-1"}, &rec)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestErrorsMapToCodes(t *testing.T) {
	e := newEnv(t)
	var app domain.Application

	err := e.call(context.Background(), "SubmitApplication", &grpcserver.SubmitApplicationRequest{JobID: "job-1"}, &app)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = e.call(as("stu-1", "janitor"), "SubmitApplication", &grpcserver.SubmitApplicationRequest{JobID: "job-1"}, &app)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = e.call(as("stu-1", "Student"), "SubmitApplication", &grpcserver.SubmitApplicationRequest{JobID: "nope"}, &app)
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = e.call(as("stu-1", "Student"), "SubmitApplication", &grpcserver.SubmitApplicationRequest{JobID: "job-old"}, &app)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	var rec domain.AttendanceRecord
	err = e.call(as("stu-1", "Student"), "CheckIn", &grpcserver.CheckInRequest{JobID: "job-1"}, &rec)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "not assigned")

	var ack grpcserver.Ack
	err = e.call(as("prov-2", "Provider"), "RevokeAssignment", &grpcserver.RevokeAssignmentRequest{StudentID: "stu-1", JobID: "job-1"}, &ack)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestValidationCarriesFieldViolations(t *testing.T) {
	e := newEnv(t)
	var app domain.Application
	err := e.call(as("stu-1", "Student"), "SubmitApplication", &grpcserver.SubmitApplicationRequest{
		JobID:    "job-1",
		Metadata: domain.Metadata{Phone: "12345", WorkType: "Gig"},
	}, &app)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	var fields []string
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			for _, v := range br.GetFieldViolations() {
				fields = append(fields, v.GetField())
			}
		}
	}
	assert.Equal(t, []string{"phone", "workType"}, fields)
}

func TestSweepExpired_AdminOnly(t *testing.T) {
	e := newEnv(t)
	var report jobs.SweepReport

	err := e.call(as("prov-1", "Provider"), "SweepExpired", &grpcserver.SweepExpiredRequest{}, &report)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	require.NoError(t, e.call(as("admin-1", "Admin"), "SweepExpired", &grpcserver.SweepExpiredRequest{AsOf: "2026-05-04"}, &report))
	assert.Equal(t, []string{"job-old"}, report.Closed)

	err = e.call(as("admin-1", "Admin"), "SweepExpired", &grpcserver.SweepExpiredRequest{AsOf: "04/05/2026"}, &report)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp, err := healthpb.NewHealthClient(e.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestUnexpectedErrorsAreOpaque(t *testing.T) {
	// A foreign error never leaks its text to clients.
	err := grpcserver.ToGRPCError(errors.New("pq: connection refused"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal server error", status.Convert(err).Message())
}
