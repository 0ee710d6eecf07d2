package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// ParseLogLevel converts a log_level setting into a slog.Level.
// An empty value means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log-level must be one of debug, info, warn, error, got: %s", s)
	}
}

// NewLogger creates a text logger at the configured level.
func NewLogger(w io.Writer, s *Settings) *slog.Logger {
	level, err := ParseLogLevel(s.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == TransportSSE {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}
	logger.InfoContext(ctx, "Config: log_level", "value", s.LogLevel)

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: docs.source", "value", s.Docs.Source)
	logger.InfoContext(ctx, "Config: docs.base_dir", "value", s.Docs.BaseDir)
	if s.Docs.BaseURL != "" {
		logger.InfoContext(ctx, "Config: docs.base_url", "value", s.Docs.BaseURL)
	}
	logger.InfoContext(ctx, "Config: docs.max_results", "value", s.Docs.MaxResults)
	logger.InfoContext(ctx, "Config: docs.watch", "value", s.Docs.Watch)
	if s.Docs.Watch {
		logger.InfoContext(ctx, "Config: docs.watch_debounce", "value", s.Docs.WatchDebounce)
	}
	logger.DebugContext(ctx, "Config: resolved", "settings", SettingsLogValue(*s))
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	keys := make([]string, len(s.Auth.APIKeys))
	for i := range s.Auth.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("log_level", s.LogLevel),
		slog.Group("auth",
			slog.String("type", s.Auth.Type),
			slog.String("username", s.Auth.Basic.Username),
			slog.String("password", "****"),
			slog.Any("api_keys", keys),
		),
		slog.Group("docs",
			slog.String("source", s.Docs.Source),
			slog.String("base_dir", s.Docs.BaseDir),
			slog.Int("max_results", s.Docs.MaxResults),
			slog.Bool("watch", s.Docs.Watch),
		),
	)
}
