// Package config reads the CLI settings from FORM2_* environment variables,
// optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the settings flags can override.
type Config struct {
	LogLevel    string        `env:"FORM2_LOG_LEVEL"`
	LogFormat   string        `env:"FORM2_LOG_FORMAT"`
	Output      string        `env:"FORM2_OUTPUT"`
	HTTPTimeout time.Duration `env:"FORM2_HTTP_TIMEOUT"`
	AllowHTTP   bool          `env:"FORM2_ALLOW_HTTP"`
	MaxAttempts int           `env:"FORM2_MAX_ATTEMPTS"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Output:      "json",
		HTTPTimeout: 10 * time.Second,
		AllowHTTP:   true,
		MaxAttempts: 3,
	}
}

// Load applies the given .env files (missing ones are skipped) and then the
// process environment over Default. Variables already present in the
// environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if strings.TrimSpace(file) == "" {
			continue
		}
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	cfg := Default()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: FORM2_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: FORM2_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	switch c.Output {
	case "json", "form", "pretty":
	default:
		return fmt.Errorf("config: FORM2_OUTPUT must be json, form or pretty, got %q", c.Output)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("config: FORM2_HTTP_TIMEOUT must not be negative")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config: FORM2_MAX_ATTEMPTS must not be negative")
	}
	return nil
}

// Logger builds the logrus logger described by the settings.
func (c Config) Logger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return logger
}
