// Package config provides Viper-based configuration loading for the XO Online
// server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this server instance in logs.
	Name string `mapstructure:"name"`
}

// TCPConfig holds game listener settings.
type TCPConfig struct {
	// Host is the bind address for the game listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the game listener.
	Port int `mapstructure:"port"`
	// IdleTimeout bounds the wait for each inbound frame. Zero disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxFrameSize is the largest inbound frame payload accepted, in bytes.
	MaxFrameSize int `mapstructure:"max_frame_size"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TCPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// RegistryConfig sizes the client registry.
type RegistryConfig struct {
	// Capacity is the maximum number of connected clients.
	Capacity int `mapstructure:"capacity"`
	// Buckets is the number of hash buckets.
	Buckets int `mapstructure:"buckets"`
}

// SessionConfig holds per-client delivery and listing settings.
type SessionConfig struct {
	// OutboxSize is the number of queued frames a client may fall behind by
	// before it is dropped.
	OutboxSize int `mapstructure:"outbox_size"`
	// ListCacheTTL is how long a rendered games page is memoised.
	ListCacheTTL time.Duration `mapstructure:"list_cache_ttl"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// AdminConfig holds the gRPC health endpoint settings.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" admin address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ContentConfig controls client-facing text.
type ContentConfig struct {
	// StringsFile optionally overrides entries of the built-in string table.
	StringsFile string `mapstructure:"strings_file"`
	// Color enables ANSI styling of pages and banners.
	Color bool `mapstructure:"color"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	TCP      TCPConfig      `mapstructure:"tcp"`
	Registry RegistryConfig `mapstructure:"registry"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Content  ContentConfig  `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTCP(c.TCP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRegistry(c.Registry); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSession(c.Session); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("server.name must not be empty")
	}
	return nil
}

func validateTCP(t TCPConfig) error {
	var errs []string
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("tcp.port must be 1-65535, got %d", t.Port))
	}
	if t.IdleTimeout < 0 {
		errs = append(errs, "tcp.idle_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "tcp.write_timeout must not be negative")
	}
	if t.MaxFrameSize < 3 || t.MaxFrameSize > 65536 {
		errs = append(errs, fmt.Sprintf("tcp.max_frame_size must be 3-65536, got %d", t.MaxFrameSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRegistry(r RegistryConfig) error {
	var errs []string
	if r.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("registry.capacity must be >= 1, got %d", r.Capacity))
	}
	if r.Buckets < 1 {
		errs = append(errs, fmt.Sprintf("registry.buckets must be >= 1, got %d", r.Buckets))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSession(s SessionConfig) error {
	var errs []string
	if s.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("session.outbox_size must be >= 1, got %d", s.OutboxSize))
	}
	if s.ListCacheTTL <= 0 {
		errs = append(errs, "session.list_cache_ttl must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	if !a.Enabled {
		return nil
	}
	var errs []string
	if a.Host == "" {
		errs = append(errs, "admin.host must not be empty")
	}
	if a.Port < 1 || a.Port > 65535 {
		errs = append(errs, fmt.Sprintf("admin.port must be 1-65535, got %d", a.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with XO_ prefix
	v.SetEnvPrefix("XO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "xo-online")

	v.SetDefault("tcp.host", "0.0.0.0")
	v.SetDefault("tcp.port", 80)
	v.SetDefault("tcp.idle_timeout", "30m")
	v.SetDefault("tcp.write_timeout", "10s")
	v.SetDefault("tcp.max_frame_size", 1024)

	v.SetDefault("registry.capacity", 1000)
	v.SetDefault("registry.buckets", 64)

	v.SetDefault("session.outbox_size", 256)
	v.SetDefault("session.list_cache_ttl", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 50051)

	v.SetDefault("content.strings_file", "")
	v.SetDefault("content.color", true)
}
