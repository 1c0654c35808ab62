// Package observability provides gRPC interceptors, health checks and the
// HTTP server for metrics and probes.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-coach-service/internal/observability/metrics"
)

// UnaryServerInterceptor records every unary call in m and logs it. A
// panicking handler is answered with codes.Internal.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer observe(m, info.FullMethod, "unary", time.Now(), &err)
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer observe(m, info.FullMethod, "stream", time.Now(), &err)
		return handler(srv, ss)
	}
}

// observe runs deferred after a handler. It must be called directly by
// defer for recover to see the panic.
func observe(m *metrics.Metrics, method, kind string, start time.Time, errp *error) {
	if r := recover(); r != nil {
		log.Error().Interface("panic", r).Str("method", method).Msg("gRPC handler panicked")
		*errp = status.Errorf(codes.Internal, "internal error")
	}
	elapsed := time.Since(start)
	code := status.Code(*errp)
	m.RecordRPC(method, code.String(), elapsed.Seconds())

	ev := log.Debug()
	switch code {
	case codes.OK, codes.Canceled:
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.ResourceExhausted:
		ev = log.Info().Err(*errp)
	default:
		ev = log.Warn().Err(*errp)
	}
	ev.Str("method", method).
		Str("kind", kind).
		Str("code", code.String()).
		Dur("duration", elapsed).
		Msg("gRPC call finished")
}
