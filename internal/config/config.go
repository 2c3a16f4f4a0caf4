// Package config provides hierarchical configuration loading for dartbridge.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the dartbridge service.
type Config struct {
	Server      Server      `yaml:"server"`
	Analyzer    Analyzer    `yaml:"analyzer"`
	Workspace   Workspace   `yaml:"workspace"`
	Diagnostics Diagnostics `yaml:"diagnostics"`
	Cache       Cache       `yaml:"cache"`
	Logging     Logging     `yaml:"logging"`
	Breaker     Breaker     `yaml:"breaker"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Analyzer holds the connection settings for the Dart analysis daemon.
type Analyzer struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ReadPoll         time.Duration `yaml:"read_poll"` // idle-read poll interval of the session read loop
}

// Addr returns the daemon's host:port dial address.
func (a Analyzer) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Workspace holds the analyzed project's location and open-document limits.
type Workspace struct {
	Root         string   `yaml:"root"`
	LanguageID   string   `yaml:"language_id"`
	MaxOpenFiles int      `yaml:"max_open_files"` // cap on documents opened per project analysis
	ExcludeGlobs []string `yaml:"exclude_globs"`
}

// Diagnostics holds collection-window tuning.
type Diagnostics struct {
	Window         time.Duration `yaml:"window"`          // project-wide collection window
	FileWindow     time.Duration `yaml:"file_window"`     // single-file collection window
	ReceiveTimeout time.Duration `yaml:"receive_timeout"` // per-read wait inside a window
	CacheTTL       time.Duration `yaml:"cache_ttl"`       // retention of the last report
}

// Cache holds the in-process report cache sizing.
type Cache struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds the circuit breaker guarding daemon connection attempts.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:5173",
		},
		Analyzer: Analyzer{
			Host:             "127.0.0.1",
			Port:             8081,
			DialTimeout:      5 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   10 * time.Second,
			ReadPoll:         250 * time.Millisecond,
		},
		Workspace: Workspace{
			Root:         ".",
			LanguageID:   "dart",
			MaxOpenFiles: 20,
			ExcludeGlobs: []string{
				"**/.dart_tool/**",
				"**/build/**",
				"**/*.g.dart",
				"**/*.freezed.dart",
			},
		},
		Diagnostics: Diagnostics{
			Window:         30 * time.Second,
			FileWindow:     10 * time.Second,
			ReceiveTimeout: 2 * time.Second,
			CacheTTL:       15 * time.Minute,
		},
		Cache: Cache{
			MaxSizeMB: 64,
		},
		Logging: Logging{
			Level:   "info",
			Service: "dartbridge",
		},
		Breaker: Breaker{
			MaxFailures: 3,
			Timeout:     30 * time.Second,
		},
	}
}
