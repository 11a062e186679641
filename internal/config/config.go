// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration with the precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the resolved daemon configuration.
type AppConfig struct {
	ListenAddr     string
	DataDir        string
	UIDir          string
	LogLevel       string
	LogService     string
	AllowedOrigins []string

	// ProbeLimit bounds concurrent latency probes against upstream
	// recording servers. Degree 1 keeps probes strictly sequential.
	ProbeLimit int

	// UpstreamTimeout applies to listing and probe requests. Download
	// streaming intentionally carries no client timeout.
	UpstreamTimeout time.Duration

	RateLimitEnabled bool
	RateLimitRPM     int
}

// fileConfig mirrors the optional config.yaml schema.
type fileConfig struct {
	Listen         string `yaml:"listen"`
	DataDir        string `yaml:"dataDir"`
	UIDir          string `yaml:"uiDir"`
	LogLevel       string `yaml:"logLevel"`
	LogService     string `yaml:"logService"`
	AllowedOrigins string `yaml:"allowedOrigins"`
	ProbeLimit     int    `yaml:"probeLimit"`
	UpstreamTimeoutSeconds int `yaml:"upstreamTimeoutSeconds"`
	RateLimit      struct {
		Enabled bool `yaml:"enabled"`
		RPM     int  `yaml:"rpm"`
	} `yaml:"rateLimit"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:       ":8123",
		DataDir:          "data",
		UIDir:            "web",
		LogLevel:         "info",
		LogService:       "mtxpanel",
		AllowedOrigins:   []string{"*"},
		ProbeLimit:       1,
		UpstreamTimeout:  30 * time.Second,
		RateLimitEnabled: true,
		RateLimitRPM:     600,
	}
}

// Load resolves the configuration. path may be empty, in which case only
// environment variables and defaults apply. A missing file at path is an
// error; an unreadable default location is not.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		applyFile(&cfg, fc)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *AppConfig, fc fileConfig) {
	if fc.Listen != "" {
		cfg.ListenAddr = fc.Listen
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.UIDir != "" {
		cfg.UIDir = fc.UIDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogService != "" {
		cfg.LogService = fc.LogService
	}
	if fc.AllowedOrigins != "" {
		cfg.AllowedOrigins = splitCSV(fc.AllowedOrigins)
	}
	if fc.ProbeLimit > 0 {
		cfg.ProbeLimit = fc.ProbeLimit
	}
	if fc.UpstreamTimeoutSeconds > 0 {
		cfg.UpstreamTimeout = time.Duration(fc.UpstreamTimeoutSeconds) * time.Second
	}
	if fc.RateLimit.RPM > 0 {
		cfg.RateLimitRPM = fc.RateLimit.RPM
	}
	cfg.RateLimitEnabled = fc.RateLimit.Enabled || cfg.RateLimitEnabled
}

func applyEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString("MTXPANEL_LISTEN", cfg.ListenAddr)
	cfg.DataDir = ParseString("MTXPANEL_DATA", cfg.DataDir)
	cfg.UIDir = ParseString("MTXPANEL_UI_DIR", cfg.UIDir)
	cfg.LogLevel = ParseString("MTXPANEL_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("MTXPANEL_LOG_SERVICE", cfg.LogService)
	if raw := ParseString("MTXPANEL_ALLOWED_ORIGINS", ""); raw != "" {
		cfg.AllowedOrigins = splitCSV(raw)
	}
	cfg.ProbeLimit = ParseInt("MTXPANEL_PROBE_LIMIT", cfg.ProbeLimit)
	if cfg.ProbeLimit < 1 {
		cfg.ProbeLimit = 1
	}
	if secs := ParseInt("MTXPANEL_UPSTREAM_TIMEOUT", 0); secs > 0 {
		cfg.UpstreamTimeout = time.Duration(secs) * time.Second
	}
	cfg.RateLimitEnabled = ParseBool("MTXPANEL_RATE_LIMIT", cfg.RateLimitEnabled)
	cfg.RateLimitRPM = ParseInt("MTXPANEL_RATE_LIMIT_RPM", cfg.RateLimitRPM)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
