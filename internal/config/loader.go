package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "dartbridge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DARTBRIDGE_PORT")
	setString(&cfg.Server.CORSOrigin, "DARTBRIDGE_CORS_ORIGIN")
	setString(&cfg.Analyzer.Host, "DARTBRIDGE_ANALYZER_HOST")
	setInt(&cfg.Analyzer.Port, "DARTBRIDGE_ANALYZER_PORT")
	setDuration(&cfg.Analyzer.DialTimeout, "DARTBRIDGE_ANALYZER_DIAL_TIMEOUT")
	setDuration(&cfg.Analyzer.HandshakeTimeout, "DARTBRIDGE_ANALYZER_HANDSHAKE_TIMEOUT")
	setDuration(&cfg.Analyzer.RequestTimeout, "DARTBRIDGE_ANALYZER_REQUEST_TIMEOUT")
	setDuration(&cfg.Analyzer.ReadPoll, "DARTBRIDGE_ANALYZER_READ_POLL")
	setString(&cfg.Workspace.Root, "DARTBRIDGE_WORKSPACE_ROOT")
	setString(&cfg.Workspace.LanguageID, "DARTBRIDGE_WORKSPACE_LANGUAGE_ID")
	setInt(&cfg.Workspace.MaxOpenFiles, "DARTBRIDGE_WORKSPACE_MAX_OPEN_FILES")
	setDuration(&cfg.Diagnostics.Window, "DARTBRIDGE_DIAG_WINDOW")
	setDuration(&cfg.Diagnostics.FileWindow, "DARTBRIDGE_DIAG_FILE_WINDOW")
	setDuration(&cfg.Diagnostics.ReceiveTimeout, "DARTBRIDGE_DIAG_RECEIVE_TIMEOUT")
	setDuration(&cfg.Diagnostics.CacheTTL, "DARTBRIDGE_DIAG_CACHE_TTL")
	setInt64(&cfg.Cache.MaxSizeMB, "DARTBRIDGE_CACHE_SIZE_MB")
	setString(&cfg.Logging.Level, "DARTBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DARTBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DARTBRIDGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "DARTBRIDGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DARTBRIDGE_BREAKER_TIMEOUT")
}

// validate checks that required fields are set and windows are coherent.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Analyzer.Host == "" {
		return errors.New("analyzer.host is required")
	}
	if cfg.Analyzer.Port < 1 || cfg.Analyzer.Port > 65535 {
		return errors.New("analyzer.port must be 1-65535")
	}
	if cfg.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	if cfg.Workspace.MaxOpenFiles < 1 {
		return errors.New("workspace.max_open_files must be >= 1")
	}
	if cfg.Diagnostics.ReceiveTimeout >= cfg.Diagnostics.Window {
		return errors.New("diagnostics.receive_timeout must be shorter than diagnostics.window")
	}
	if cfg.Diagnostics.ReceiveTimeout >= cfg.Diagnostics.FileWindow {
		return errors.New("diagnostics.receive_timeout must be shorter than diagnostics.file_window")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
