// Package grpc exposes the grpc.health.v1 service for the API process.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds a gRPC server that serves hs and applies timeout to every
// unary call without a deadline.
func NewServer(hs *health.Server, timeout time.Duration, log *slog.Logger) *grpc.Server {
	if log == nil {
		log = slog.Default()
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(log.With(slog.String("component", "grpc"))),
			defaultRequestTimeoutInterceptor(timeout),
		),
	)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		args := []any{slog.String("rpc", info.FullMethod), slog.Duration("latency", time.Since(start))}
		if err != nil {
			log.Warn("rpc failed", append(args, slog.Any("err", err))...)
			return resp, err
		}
		log.Debug("rpc served", args...)
		return resp, nil
	}
}

// Shutdown stops s gracefully, forcing it after timeout.
func Shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
