package grpc

import (
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the step counter reports its health under.
const ServiceName = "stepcounter"

type options struct {
	listen string
}

type Option func(o *options)

func WithListen(addr string) Option {
	return func(o *options) {
		o.listen = addr
	}
}

// Server exposes the standard grpc health checking protocol.
type Server struct {
	server  *grpc.Server
	health  *health.Server
	logger  *logrus.Logger
	options options
}

func NewServer(logger *logrus.Logger, registerer prometheus.Registerer, opts ...Option) *Server {
	o := options{listen: ":8081"}
	for _, opt := range opts {
		opt(&o)
	}

	metrics := grpc_prometheus.NewServerMetrics()
	registerer.MustRegister(metrics)

	server := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()),
		grpc.StreamInterceptor(metrics.StreamServerInterceptor()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	metrics.InitializeMetrics(server)

	return &Server{
		server:  server,
		health:  hs,
		logger:  logger,
		options: o,
	}
}

// Start listens on the configured address and blocks until Stop is called.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.options.listen)
	if err != nil {
		return errors.Wrapf(err, "could not listen on %s", s.options.listen)
	}

	s.logger.Infof("starting grpc server on %s", s.options.listen)
	return s.Serve(lis)
}

// Serve marks the service as serving and handles connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return errors.Wrap(err, "grpc server failed")
	}
	return nil
}

// Stop reports NOT_SERVING to watchers and stops the server gracefully.
func (s *Server) Stop() {
	s.logger.Info("stopping grpc server")
	s.health.Shutdown()
	s.server.GracefulStop()
}
