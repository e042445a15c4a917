package api

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// FeedService is the health service name that tracks the frame feed. The
// empty service name reports the same status.
const FeedService = "posture.Feed"

// HealthServer exposes grpc.health.v1.Health and reflection. It starts
// NOT_SERVING and follows the runner's feed state.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	h := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	reflection.Register(h.server)
	h.SetFeedLive(false)
	return h
}

// SetFeedLive matches the pipeline.RunnerConfig.OnFeedState signature.
func (h *HealthServer) SetFeedLive(live bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if live {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(FeedService, status)
}

// Server exposes the underlying grpc.Server for extra registrations.
func (h *HealthServer) Server() *grpc.Server { return h.server }

// Serve accepts on lis until ctx is done, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- h.server.Serve(lis) }()
	diagf("gRPC health listening on %s", lis.Addr())

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		h.server.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("grpc serve: %w", err)
	}
}

// ListenAndServe listens on addr and calls Serve.
func (h *HealthServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return h.Serve(ctx, lis)
}
