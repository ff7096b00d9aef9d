// Package grpc exposes the standard gRPC health service for the bot.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/proto"
)

// ServiceName is the health service name reported alongside the overall ("") status
const ServiceName = "phoenix.Bot"

// Check reports whether one dependency is usable
type Check func(ctx context.Context) error

// Server wraps the gRPC server
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer creates a gRPC server listening on port. Both services start NOT_SERVING
// until Watch reports otherwise.
func NewServer(port string, logger *zap.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", ":"+port) //nolint:noctx // Server initialization doesn't require context
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	s := newServer(lis, logger)
	logger.Info("gRPC server configured", zap.String("port", port))
	return s, nil
}

func newServer(lis net.Listener, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(loggingInterceptor(logger)),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register reflection service for development (allows tools like grpcurl)
	reflection.Register(grpcServer)

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		listener:   lis,
		logger:     logger,
	}
}

// Serve starts the gRPC server
func (s *Server) Serve() error {
	s.logger.Info("starting gRPC server", zap.String("address", s.listener.Addr().String()))

	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Watch runs checks every interval and publishes the result as the
// serving status until ctx is done
func (s *Server) Watch(ctx context.Context, interval time.Duration, checks ...Check) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.update(ctx, checks)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) update(ctx context.Context, checks []Check) {
	status := healthpb.HealthCheckResponse_SERVING
	for _, check := range checks {
		if err := check(ctx); err != nil {
			s.logger.Debug("health check failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// GracefulStop marks every service NOT_SERVING and stops the server
func (s *Server) GracefulStop() {
	s.logger.Info("gracefully stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Stop immediately stops the gRPC server
func (s *Server) Stop() {
	s.logger.Info("stopping gRPC server")
	s.grpcServer.Stop()
}

// loggingInterceptor logs all gRPC requests
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)

		fields := []zap.Field{zap.String("method", info.FullMethod)}
		if msg, ok := req.(proto.Message); ok {
			fields = append(fields, zap.String("request_type", string(proto.MessageName(msg))))
		}

		if err != nil {
			logger.Error("gRPC request failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("gRPC request completed", fields...)
		}

		return resp, err
	}
}
