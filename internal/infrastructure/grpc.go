package infrastructure

import (
	"fmt"
	"net"

	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer only serves the standard health service for the price feed.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
}

func NewGRPCServer(addr string, env string) *GRPCServer {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(constant.GRPCHealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	if env == constant.DevelopmentEnvironment {
		reflection.Register(server)
	}

	return &GRPCServer{
		server: server,
		health: healthServer,
		addr:   addr,
	}
}

// Listen binds the address so callers see port errors before Serve.
func (g *GRPCServer) Listen() (net.Listener, error) {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", g.addr, err)
	}

	return lis, nil
}

func (g *GRPCServer) Serve(lis net.Listener) error {
	logrus.WithField("addr", lis.Addr().String()).Info("grpc server starting")
	return g.server.Serve(lis)
}

func (g *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(constant.GRPCHealthServiceName, status)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
