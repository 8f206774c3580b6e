package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ServiceName is attached to every record.
const ServiceName = "booking-relay"

// Config holds the configuration of the logger.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"

	// Output defaults to stdout.
	Output io.Writer
}

// contextKey is used for context values.
type contextKey string

const (
	// ContextKeyRequestID is the key for request ID in the context.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyBookingID is the key for the booking being relayed.
	ContextKeyBookingID contextKey = "booking_id"
	// ContextKeyOperation is the key for operation name in the context.
	ContextKeyOperation contextKey = "operation"
)

// contextKeys are copied onto records by WithContext, in this order.
var contextKeys = []contextKey{ContextKeyRequestID, ContextKeyBookingID, ContextKeyOperation}

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the given config.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:     config.Level,
			AddSource: true,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339))
				}
				return a
			},
		})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      config.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
			NoColor:    config.Output != nil,
		})
	}

	return &Logger{
		Logger: slog.New(handler).With(
			slog.String("service", ServiceName),
			slog.String("instance_id", instanceID()),
		),
	}
}

// FromConfig creates a logger configuration from the LOG_LEVEL and LOG_FORMAT
// settings. Unknown levels fall back to info.
func FromConfig(logLevel, logFormat string) Config {
	config := Config{
		Level:  slog.LevelInfo,
		Format: "text",
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(logLevel))); err == nil {
		config.Level = level
	}

	if logFormat != "" {
		config.Format = strings.ToLower(logFormat)
	}

	// Use JSON format in production.
	if os.Getenv("APP_ENV") == "production" {
		config.Format = "json"
	}

	return config
}

// WithContext returns a logger carrying the request, booking and operation
// found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	for _, key := range contextKeys {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			attrs = append(attrs, slog.String(string(key), value))
		}
	}

	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// WithComponent creates a new logger with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("component", component)),
	}
}

// TokenPrefix shortens a push token for logging. At most the first 10
// characters are kept, and never more than half of the token.
func TokenPrefix(token string) string {
	n := len(token) / 2
	if n > 10 {
		n = 10
	}
	return token[:n] + "..."
}

func instanceID() string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
