// Package observability provides logging for the game processes and an audit
// trail of bus events.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/game/event"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Subscriber is the part of event.Bus needed to follow every event.
type Subscriber interface {
	SubscribeAll(h event.Handler) (unsubscribe func())
}

// LogEvents writes every event published on bus to logger at Debug level.
//
// Postcondition: Returns the function that stops the audit trail.
func LogEvents(bus Subscriber, logger *zap.Logger) (stop func()) {
	logger = logger.Named("events")
	return bus.SubscribeAll(func(e event.Event) {
		if ce := logger.Check(zapcore.DebugLevel, string(e.Name)); ce != nil {
			ce.Write(
				zap.Stringer("event_id", e.ID),
				zap.Time("at", e.Timestamp),
				zap.Any("payload", e.Payload),
			)
		}
	})
}
