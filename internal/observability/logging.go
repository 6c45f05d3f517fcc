// Package observability configures the zap loggers shared by the server's
// components.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TobyBridle/xo-online/internal/config"
)

// formats maps logging.format values to zap base configurations.
var formats = map[string]func() zap.Config{
	"json":    zap.NewProductionConfig,
	"console": zap.NewDevelopmentConfig,
}

// NewLogger builds the process logger. When serverName is set every entry
// carries it as the "server" field.
//
// Precondition: cfg has passed config validation.
// Postcondition: Returns a ready logger, or an error naming the bad setting.
func NewLogger(cfg config.LoggingConfig, serverName string) (*zap.Logger, error) {
	base, ok := formats[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	zc := base()
	zc.Level = level
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var opts []zap.Option
	if serverName != "" {
		opts = append(opts, zap.Fields(zap.String("server", serverName)))
	}
	logger, err := zc.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building %s logger: %w", cfg.Format, err)
	}
	return logger, nil
}

// ConnLogger tags logger with a connection's trace id and peer address.
func ConnLogger(logger *zap.Logger, connID, remoteAddr string) *zap.Logger {
	return logger.With(
		zap.String("conn_id", connID),
		zap.String("remote_addr", remoteAddr),
	)
}
