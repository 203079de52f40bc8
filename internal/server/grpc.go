package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
)

// MaxMessageSize bounds request and response size (100 MB)
const MaxMessageSize = 100 * 1024 * 1024

// NewGRPCServer builds a gRPC server with the TemporalGraph service, the
// standard health service and reflection for grpcurl/grpcui
func NewGRPCServer(srv TemporalGraphServer, m *metrics.Metrics, log *logger.Logger) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
		grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)),
	)

	Register(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	reflection.Register(gs)
	return gs, hs
}
