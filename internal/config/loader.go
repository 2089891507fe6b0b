package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FromEnvironment builds a Config from the TB_* environment variables
// cmd/server reads. Validation is deferred to the caller so cmd/server can
// log a precise fatal reason before exiting.
func FromEnvironment() (*Config, error) {
	cfg := &Config{
		Mode: ModeServer,
		HTTP: HTTPConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	if addr := strings.TrimSpace(os.Getenv("TB_HTTP_ADDR")); addr != "" {
		host, portStr, err := splitAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("TB_HTTP_ADDR: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("TB_HTTP_ADDR: invalid port %q: %w", portStr, err)
		}
		cfg.HTTP.Host = host
		cfg.HTTP.Port = port
	}

	if publicURL := strings.TrimSpace(os.Getenv("TB_PUBLIC_URL")); publicURL != "" {
		cfg.HTTP.PublicURL = publicURL
	}

	if spacesJSON := strings.TrimSpace(os.Getenv("TB_API_SPACES")); spacesJSON != "" {
		var spaces []APISpace
		if err := json.Unmarshal([]byte(spacesJSON), &spaces); err != nil {
			return nil, fmt.Errorf("TB_API_SPACES: invalid JSON array: %w", err)
		}
		cfg.APISpaces = spaces
	}

	if adminToken := strings.TrimSpace(os.Getenv("TB_ADMIN_TOKEN")); adminToken != "" {
		cfg.Admin.AdminToken = adminToken
	}

	if level := strings.TrimSpace(os.Getenv("TB_LOG_LEVEL")); level != "" {
		cfg.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("TB_LOG_FORMAT")); format != "" {
		cfg.Logging.Format = format
	}

	cfg.DefaultTimings()
	return cfg, nil
}

// splitAddr splits a "host:port" string, tolerating a bare ":port" form.
func splitAddr(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("missing ':port'")
	}
	return addr[:idx], addr[idx+1:], nil
}
