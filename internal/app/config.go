package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/toucan/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Settings is the merged file, environment and flag configuration.
	Settings config.Model

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// ReconnectDelay is the pause before the event stream is dialed again.
	ReconnectDelay time.Duration
}

func NewConfig(cfg Config) (*Config, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, errors.New("healthcheck port must be between 0 and 65535")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	return &cfg, nil
}
