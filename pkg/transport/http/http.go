package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samueltorres/stepcounter/pkg/counter"
	"github.com/sirupsen/logrus"
)

// StepService is the business layer the handlers call into.
type StepService interface {
	AddTeam(teamID string) error
	DeleteTeam(teamID string) error
	AddCounter(teamID, counterID string) error
	DeleteCounter(teamID, counterID string) error
	IncrementCounter(teamID, counterID string, steps int64) error
	GetTotalSteps(teamID string) (int64, error)
	ListCounters(teamID string) ([]counter.CounterSteps, error)
	ListTeams() []counter.TeamSteps
}

type options struct {
	listen          string
	shutdownTimeout time.Duration
}

type Option func(o *options)

func WithListen(addr string) Option {
	return func(o *options) {
		o.listen = addr
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}

type Server struct {
	service StepService
	router  *mux.Router
	server  *http.Server
	logger  *logrus.Logger
	metrics *metricsMiddleware
	options options
}

func New(service StepService, logger *logrus.Logger, registry *prometheus.Registry, opts ...Option) *Server {
	o := options{
		listen:          ":8080",
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: NewMetricsMiddleware(registry),
		options: o,
	}
	s.registerRoutes(registry)

	s.server = &http.Server{
		Addr:         o.listen,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	m := s.metrics

	s.router.HandleFunc("/teams", m.Handler("list_teams", s.handleListTeams)).Methods("GET")
	s.router.HandleFunc("/teams/{teamId}", m.Handler("add_team", s.handleAddTeam)).Methods("POST")
	s.router.HandleFunc("/teams/{teamId}", m.Handler("delete_team", s.handleDeleteTeam)).Methods("DELETE")
	s.router.HandleFunc("/teams/{teamId}/total", m.Handler("get_team_total", s.handleGetTotalSteps)).Methods("GET")
	s.router.HandleFunc("/teams/{teamId}/counters", m.Handler("list_counters", s.handleListCounters)).Methods("GET")
	s.router.HandleFunc("/teams/{teamId}/counters/{counterId}", m.Handler("add_counter", s.handleAddCounter)).Methods("POST")
	s.router.HandleFunc("/teams/{teamId}/counters/{counterId}", m.Handler("delete_counter", s.handleDeleteCounter)).Methods("DELETE")
	s.router.HandleFunc("/teams/{teamId}/counters/{counterId}/increment", m.Handler("increment_counter", s.handleIncrementCounter)).Methods("POST")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Infof("starting http server on %s", s.options.listen)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(reason error) {
	s.logger.WithField("reason", reason).Info("stopping http server")

	ctx, cancel := context.WithTimeout(context.Background(), s.options.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Errorf("http server shutdown: %v", err)
	}
}
