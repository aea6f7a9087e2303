package observability

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger writes JSON in production and text elsewhere. LOG_LEVEL
// overrides the default level of info (prod) or debug (everything else).
func NewLogger(env, component string) *slog.Logger {
	prod := env == "prod" || env == "production"
	level := slog.LevelDebug
	if prod {
		level = slog.LevelInfo
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(raw)); err == nil {
			level = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if prod {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("component", component, "env", env)
}
