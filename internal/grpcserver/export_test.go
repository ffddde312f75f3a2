package grpcserver

var ToGRPCError = toGRPCError
