package server

import "time"

// Config holds configuration for the HTTP API.
type Config struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" split_words:"true"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	// StartTimeout bounds how long POST /api/start waits for series.
	StartTimeout time.Duration `yaml:"start_timeout" split_words:"true"`
	// ClientBuffer is the per-websocket-client send queue size.
	ClientBuffer int `yaml:"client_buffer" split_words:"true"`
	// PingInterval is how often idle websocket clients are pinged.
	PingInterval time.Duration `yaml:"ping_interval" split_words:"true"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 5 * time.Second,
		StartTimeout:    30 * time.Second,
		ClientBuffer:    256,
		PingInterval:    45 * time.Second,
	}
}
