// Package grpcserver exposes the workforce commands over gRPC.
//
// It delegates all business logic to the workflow services and handles
// only the gRPC transport concerns: metadata extraction, error mapping,
// and message decoding. Messages are plain structs carried by the JSON
// codec registered in codec.go, so no generated stubs are needed.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"jobmate/workforce-service/internal/applications"
	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/assignments"
	"jobmate/workforce-service/internal/attendance"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/jobs"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jobmate.workforce.v1.WorkforceService"

// WorkforceServer is the set of RPCs registered under ServiceName.
type WorkforceServer interface {
	SubmitApplication(context.Context, *SubmitApplicationRequest) (*domain.Application, error)
	DecideApplication(context.Context, *DecideApplicationRequest) (*domain.Application, error)
	WithdrawApplication(context.Context, *WithdrawApplicationRequest) (*Ack, error)
	RevokeAssignment(context.Context, *RevokeAssignmentRequest) (*Ack, error)
	CheckIn(context.Context, *CheckInRequest) (*domain.AttendanceRecord, error)
	CheckOut(context.Context, *CheckOutRequest) (*domain.AttendanceRecord, error)
	CurrentCheckin(context.Context, *CurrentCheckinRequest) (*CurrentCheckinResponse, error)
	SweepExpired(context.Context, *SweepExpiredRequest) (*jobs.SweepReport, error)
}

// Server implements WorkforceServer.
type Server struct {
	apps     *applications.Service
	assign   *assignments.Registry
	ledger   *attendance.Ledger
	jobs     *jobs.Service
	location *time.Location
}

// NewServer constructs a Server backed by the workflow services. loc is the
// zone SweepExpired dates are read in.
func NewServer(apps *applications.Service, reg *assignments.Registry, ledger *attendance.Ledger, js *jobs.Service, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{apps: apps, assign: reg, ledger: ledger, jobs: js, location: loc}
}

// New returns a grpc.Server with the workforce service and the standard
// health service registered.
func New(srv WorkforceServer, log *slog.Logger) *grpc.Server {
	if log == nil {
		log = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(recoverInterceptor(log), logInterceptor(log)))
	gs.RegisterService(&ServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// SubmitApplication creates a Pending application for the caller (or, for an
// admin, for req.StudentID).
func (s *Server) SubmitApplication(ctx context.Context, req *SubmitApplicationRequest) (*domain.Application, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.Submit(ctx, actor, req.StudentID, req.JobID, req.Metadata)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return app, nil
}

// DecideApplication approves or rejects an application.
func (s *Server) DecideApplication(ctx context.Context, req *DecideApplicationRequest) (*domain.Application, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseApplicationStatus(domain.Canonical(req.Status))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	app, err := s.apps.Decide(ctx, actor, req.ApplicationID, to)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return app, nil
}

// WithdrawApplication deletes an application and any assignment it produced.
func (s *Server) WithdrawApplication(ctx context.Context, req *WithdrawApplicationRequest) (*Ack, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.apps.Withdraw(ctx, actor, req.ApplicationID); err != nil {
		return nil, toGRPCError(err)
	}
	return &Ack{OK: true}, nil
}

// RevokeAssignment removes a student's assignment and rejects the application.
func (s *Server) RevokeAssignment(ctx context.Context, req *RevokeAssignmentRequest) (*Ack, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.assign.Revoke(ctx, actor, req.StudentID, req.JobID); err != nil {
		return nil, toGRPCError(err)
	}
	return &Ack{OK: true}, nil
}

// CheckIn opens today's attendance record for the calling student.
func (s *Server) CheckIn(ctx context.Context, req *CheckInRequest) (*domain.AttendanceRecord, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.ledger.CheckIn(ctx, actor, req.JobID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return rec, nil
}

// CheckOut closes an open attendance record.
func (s *Server) CheckOut(ctx context.Context, req *CheckOutRequest) (*domain.AttendanceRecord, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.ledger.CheckOut(ctx, actor, req.CheckinID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return rec, nil
}

// CurrentCheckin returns the caller's open record, if any.
func (s *Server) CurrentCheckin(ctx context.Context, _ *CurrentCheckinRequest) (*CurrentCheckinResponse, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.ledger.CurrentCheckin(ctx, actor)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &CurrentCheckinResponse{Record: rec}, nil
}

// SweepExpired closes expired jobs. Admin only.
func (s *Server) SweepExpired(ctx context.Context, req *SweepExpiredRequest) (*jobs.SweepReport, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, "only admins can trigger a sweep")
	}

	var report *jobs.SweepReport
	if req.AsOf == "" {
		report, err = s.jobs.SweepToday(ctx)
	} else {
		asOf, perr := time.ParseInLocation(time.DateOnly, req.AsOf, s.location)
		if perr != nil {
			return nil, status.Error(codes.InvalidArgument, "asOf must be YYYY-MM-DD")
		}
		report, err = s.jobs.SweepExpired(ctx, asOf)
	}
	if err != nil {
		return nil, toGRPCError(err)
	}
	return report, nil
}

// ─── Service descriptor ──────────────────────────────────────────────────────

// ServiceDesc is registered on the grpc.Server by New.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkforceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SubmitApplication", WorkforceServer.SubmitApplication),
		unary("DecideApplication", WorkforceServer.DecideApplication),
		unary("WithdrawApplication", WorkforceServer.WithdrawApplication),
		unary("RevokeAssignment", WorkforceServer.RevokeAssignment),
		unary("CheckIn", WorkforceServer.CheckIn),
		unary("CheckOut", WorkforceServer.CheckOut),
		unary("CurrentCheckin", WorkforceServer.CurrentCheckin),
		unary("SweepExpired", WorkforceServer.SweepExpired),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workforce.proto",
}

func unary[Req, Resp any](method string, call func(WorkforceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			ws := srv.(WorkforceServer)
			if interceptor == nil {
				return call(ws, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ws, ctx, req.(*Req))
			})
		},
	}
}

// ─── Interceptors ────────────────────────────────────────────────────────────

func logInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		log.Log(ctx, level, "grpc request", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, err
	}
}

func recoverInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panic", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// actorFromCtx extracts the x-user-id and x-user-role values forwarded by
// the Gateway via gRPC metadata.
func actorFromCtx(ctx context.Context) (domain.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	ids := md.Get("x-user-id")
	if len(ids) == 0 || ids[0] == "" {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	roles := md.Get("x-user-role")
	if len(roles) == 0 {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "missing x-user-role metadata")
	}
	role, err := domain.ParseRole(roles[0])
	if err != nil {
		return domain.Actor{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return domain.Actor{UserID: ids[0], Role: role}, nil
}

// toGRPCError maps service errors to gRPC status errors. Validation
// problems travel as a BadRequest detail.
func toGRPCError(err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return status.Error(codes.Internal, "internal server error")
	}

	switch ae.Kind {
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, ae.Message)
	case apperr.KindConflict:
		return status.Error(codes.AlreadyExists, ae.Message)
	case apperr.KindInvalidState:
		return status.Error(codes.FailedPrecondition, ae.Message)
	case apperr.KindForbidden:
		return status.Error(codes.PermissionDenied, ae.Message)
	case apperr.KindUnauthorized:
		return status.Error(codes.Unauthenticated, ae.Message)
	case apperr.KindRateLimited:
		return status.Error(codes.ResourceExhausted, ae.Message)
	case apperr.KindValidation:
		st := status.New(codes.InvalidArgument, ae.Message)
		if len(ae.Fields) == 0 {
			return st.Err()
		}
		br := &errdetails.BadRequest{}
		for _, field := range slices.Sorted(maps.Keys(ae.Fields)) {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: field, Description: ae.Fields[field]})
		}
		if withDetails, derr := st.WithDetails(br); derr == nil {
			return withDetails.Err()
		}
		return st.Err()
	}
	return status.Error(codes.Internal, "internal server error")
}
