// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const appDirName = "gitbutler-server"

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"6978"`
	BindAddress string `env:"BIND_ADDRESS" default:"0.0.0.0"`
	DataDir     string `env:"APP_DATA_DIR"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	GitBinary   string `env:"GIT_BINARY" default:"git"`

	MaxWebSocketConnections      int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"1000"`
	MaxWebSocketConnectionsPerIP int     `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"100"`
	WebSocketConnectionsPerSec   float64 `env:"WEBSOCKET_CONNECTIONS_PER_SECOND" default:"20"`
	WebSocketConnectionBurst     int     `env:"WEBSOCKET_CONNECTION_BURST" default:"40"`

	// SubscriberQueueLimit bounds each subscriber's outbound queue; 0 means unbounded.
	SubscriberQueueLimit int           `env:"SUBSCRIBER_QUEUE_LIMIT" default:"0"`
	WatcherDebounce      time.Duration `env:"WATCHER_DEBOUNCE" default:"100ms"`
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddress, c.Port)
}

// DatabasePath returns the location of the project store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "projects.db")
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("APP_DATA_DIR is not set and no user config dir is available: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

func validate(cfg *Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.BindAddress == "" {
		return errors.New("BIND_ADDRESS is required")
	}
	if cfg.GitBinary == "" {
		return errors.New("GIT_BINARY is required")
	}

	nonNegative := map[string]int{
		"MAX_WEBSOCKET_CONNECTIONS":        cfg.MaxWebSocketConnections,
		"MAX_WEBSOCKET_CONNECTIONS_PER_IP": cfg.MaxWebSocketConnectionsPerIP,
		"WEBSOCKET_CONNECTION_BURST":       cfg.WebSocketConnectionBurst,
		"SUBSCRIBER_QUEUE_LIMIT":           cfg.SubscriberQueueLimit,
	}
	for name, value := range nonNegative {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if cfg.WebSocketConnectionsPerSec < 0 {
		return errors.New("WEBSOCKET_CONNECTIONS_PER_SECOND must not be negative")
	}
	if cfg.WatcherDebounce < 0 {
		return errors.New("WATCHER_DEBOUNCE must not be negative")
	}

	return nil
}
