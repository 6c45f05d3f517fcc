package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Name: "xo-online"},
		TCP: TCPConfig{
			Host:         "0.0.0.0",
			Port:         80,
			IdleTimeout:  30 * time.Minute,
			WriteTimeout: 10 * time.Second,
			MaxFrameSize: 1024,
		},
		Registry: RegistryConfig{Capacity: 1000, Buckets: 64},
		Session:  SessionConfig{OutboxSize: 256, ListCacheTTL: time.Minute},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Admin: AdminConfig{Host: "127.0.0.1", Port: 50051},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestTCPAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:80", cfg.TCP.Addr())
}

func TestAdminAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "127.0.0.1:50051", cfg.Admin.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  name: test
tcp:
  host: 127.0.0.1
  port: 4001
  idle_timeout: 1m
  write_timeout: 5s
  max_frame_size: 512
registry:
  capacity: 10
logging:
  level: debug
  format: console
content:
  color: false
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Server.Name)
	assert.Equal(t, 4001, cfg.TCP.Port)
	assert.Equal(t, time.Minute, cfg.TCP.IdleTimeout)
	assert.Equal(t, 512, cfg.TCP.MaxFrameSize)
	assert.Equal(t, 10, cfg.Registry.Capacity)
	assert.Equal(t, 64, cfg.Registry.Buckets)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Content.Color)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.TCP.Port)
	assert.Equal(t, 1000, cfg.Registry.Capacity)
	assert.Equal(t, time.Minute, cfg.Session.ListCacheTTL)
	assert.False(t, cfg.Admin.Enabled)
	assert.True(t, cfg.Content.Color)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("XO_TCP_PORT", "7777")
	t.Setenv("XO_REGISTRY_CAPACITY", "5")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.TCP.Port)
	assert.Equal(t, 5, cfg.Registry.Capacity)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateServerNameEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Name = " "
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateTCP(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TCP.WriteTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TCP.MaxFrameSize = 2
	assert.Error(t, cfg.Validate())
}

func TestValidateRegistryAndSession(t *testing.T) {
	cfg := validConfig()
	cfg.Registry.Capacity = 0
	cfg.Session.OutboxSize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.capacity")
	assert.Contains(t, err.Error(), "session.outbox_size")
}

func TestValidateAdminOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Port = 0
	assert.NoError(t, cfg.Validate())

	cfg.Admin.Enabled = true
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.TCP.Port = port
		err := cfg.Validate()
		if err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.TCP.Port = port
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyCapacityAlwaysPositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(-100, 5000).Draw(t, "capacity")
		cfg := validConfig()
		cfg.Registry.Capacity = capacity
		err := cfg.Validate()
		if (capacity >= 1) != (err == nil) {
			t.Fatalf("capacity %d: validate returned %v", capacity, err)
		}
	})
}
