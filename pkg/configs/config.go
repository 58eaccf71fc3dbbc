package configs

import "time"

type Config struct {
	HttpAddr        string
	GrpcAddr        string
	TeamsFile       string
	IDFormat        string
	LogLevel        string
	ShutdownTimeout time.Duration
}
