// Package config loads server settings from the environment and client
// settings from a YAML file.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Broker kinds.
const (
	BrokerRedis = "redis"
	BrokerNATS  = "nats"
)

var (
	ErrMissingDSN    = errors.New("DB_DSN is not set")
	ErrMissingSecret = errors.New("JWT_SECRET is not set")
	ErrUnknownBroker = errors.New("BROKER must be redis or nats")
)

// Server is the runtime configuration of cmd/server.
type Server struct {
	Addr      string
	DSN       string
	JWTSecret string
	LogLevel  string

	Broker    string
	RedisAddr string
	NatsURL   string

	ShutdownTimeout time.Duration
}

// LoadServer reads the server configuration from the environment.
func LoadServer() (Server, error) {
	cfg := Server{
		Addr:            env("ADDR", ":8080"),
		DSN:             env("DB_DSN", ""),
		JWTSecret:       env("JWT_SECRET", ""),
		LogLevel:        env("LOG_LEVEL", "info"),
		Broker:          strings.ToLower(env("BROKER", BrokerRedis)),
		RedisAddr:       env("REDIS_ADDR", "localhost:6379"),
		NatsURL:         env("NATS_URL", "nats://127.0.0.1:4222"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first missing or invalid setting.
func (c Server) Validate() error {
	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	if c.Broker != BrokerRedis && c.Broker != BrokerNATS {
		return ErrUnknownBroker
	}
	return nil
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
