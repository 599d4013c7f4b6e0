package main

import "time"

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=128"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	TokenSecret          string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration        time.Duration `env:"TOKEN_DURATION,default=24h"`
	// SeedUsers preloads the local user directory, e.g. "alice:Alice,bob:Bob".
	SeedUsers string `env:"SEED_USERS"`
}
