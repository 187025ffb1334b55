package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envUnitDeadline = "HARNESS_UNIT_DEADLINE"
	envMaxInFlight  = "HARNESS_MAX_IN_FLIGHT"
	envProbeURL     = "HARNESS_PROBE_URL"
	envHealthAddr   = "HARNESS_HEALTH_ADDR"
	envLogLevel     = "HARNESS_LOG_LEVEL"
)

type Config struct {
	UnitDeadline time.Duration
	MaxInFlight  int // 0 launches the whole batch at once
	ProbeURL     string
	HealthAddr   string // empty disables the health server
	LogLevel     slog.Level
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		UnitDeadline: 2 * time.Second,
		MaxInFlight:  0,
		ProbeURL:     "https://www.google.com",
		LogLevel:     slog.LevelInfo,
	}

	if v := os.Getenv(envUnitDeadline); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envUnitDeadline, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", envUnitDeadline, d)
		}
		cfg.UnitDeadline = d
	}
	if v := os.Getenv(envMaxInFlight); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envMaxInFlight, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%s cannot be negative, got %d", envMaxInFlight, n)
		}
		cfg.MaxInFlight = n
	}
	if v := os.Getenv(envProbeURL); v != "" {
		cfg.ProbeURL = v
	}
	if v := os.Getenv(envHealthAddr); v != "" {
		cfg.HealthAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%s: unknown level %q", envLogLevel, s)
	}
}
