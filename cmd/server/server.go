package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/samueltorres/stepcounter/pkg/configs"
	"github.com/samueltorres/stepcounter/pkg/counter"
	"github.com/samueltorres/stepcounter/pkg/file"
	"github.com/samueltorres/stepcounter/pkg/steps"
	"github.com/samueltorres/stepcounter/pkg/transport/grpc"
	"github.com/samueltorres/stepcounter/pkg/transport/http"
	"github.com/sirupsen/logrus"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	config := parseConfig()
	logger := createLogger(config)

	// metrics
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		version.NewCollector("stepcounter"),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	idFormat, err := steps.ParseIDFormat(config.IDFormat)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	// step counter service
	store := counter.NewStore(logger, metrics)
	stepService := steps.NewStepService(store, idFormat, logger, metrics)

	if config.TeamsFile != "" {
		teamFileService, err := file.NewTeamFileService(config.TeamsFile, stepService, logger)
		if err != nil {
			logger.Fatalf("error loading teams file: %v", err)
		}
		teamFileService.Watch()
	}

	var g run.Group
	{
		grpcServer := grpc.NewServer(
			logger,
			metrics,
			grpc.WithListen(config.GrpcAddr))

		g.Add(func() error {
			return grpcServer.Start()
		}, func(error) {
			grpcServer.Stop()
		})
	}
	{
		httpServer := http.New(
			stepService,
			logger,
			metrics,
			http.WithListen(config.HttpAddr),
			http.WithShutdownTimeout(config.ShutdownTimeout))

		g.Add(func() error {
			return httpServer.Start()
		}, func(err error) {
			httpServer.Stop(err)
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancel:
				return nil
			}
		}, func(error) {
			close(cancel)
		})
	}

	logger.Info("exit: ", g.Run())
}

func parseConfig() configs.Config {
	fs := flag.NewFlagSet("stepcounter", flag.ExitOnError)
	var (
		httpAddress     = fs.String("http-addr", ":8080", "http address")
		grpcAddress     = fs.String("grpc-addr", ":8081", "grpc address for health checks")
		teamsFile       = fs.String("teams-file", "", "yaml file with teams to create on startup, reapplied on change")
		idFormat        = fs.String("id-format", "string", "team and counter identifier format (string/uuid)")
		logLevel        = fs.String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
		shutdownTimeout = fs.Duration("shutdown-timeout", defaultShutdownTimeout, "graceful shutdown timeout")
	)
	ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("STEPS"))

	var config configs.Config
	{
		config.HttpAddr = *httpAddress
		config.GrpcAddr = *grpcAddress
		config.TeamsFile = *teamsFile
		config.IDFormat = *idFormat
		config.LogLevel = *logLevel
		config.ShutdownTimeout = *shutdownTimeout
	}

	return config
}

func createLogger(config configs.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.ErrorLevel
	}

	logger.Infof("setting log level to %v", level)
	logger.SetLevel(level)

	return logger
}
