package health

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCServer serves grpc.health.v1.Health. The overall ("") service status
// follows the readiness monitor.
type GRPCServer struct {
	srv    *grpc.Server
	health *grpchealth.Server
	logger *slog.Logger
}

// NewGRPCServer creates a health server wired to m.
func NewGRPCServer(m *Monitor, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}

	srv := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCServer{srv: srv, health: hs, logger: logger}
	m.OnChange(g.setServing)
	return g
}

func (g *GRPCServer) setServing(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (g *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
		errCh <- g.srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		g.health.Shutdown()
		g.srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
