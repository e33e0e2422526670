package status

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

// ServiceName is the gRPC health service name of the ingestion pipeline.
const ServiceName = "yard_tracker.Ingestion"

// HealthServer reports SERVING while the pipeline runs and NOT_SERVING once
// it has drained.
type HealthServer struct {
	hs     *health.Server
	srv    *grpc.Server
	logger *zap.Logger
}

func NewHealthServer(log *zap.Logger) *HealthServer {
	h := &HealthServer{
		hs:     health.NewServer(),
		logger: logger.OrNop(log),
	}
	h.SetServing(false)
	return h
}

func (h *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

// Check answers a health request in-process.
func (h *HealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.hs.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve listens on addr until ctx is done.
func (h *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", addr, err)
	}
	h.srv = grpc.NewServer()
	healthpb.RegisterHealthServer(h.srv, h.hs)

	go func() {
		<-ctx.Done()
		h.hs.Shutdown()
		h.srv.GracefulStop()
	}()

	h.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	if err := h.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}
