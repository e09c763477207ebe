package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/crm-backend/pkg/env"
	"github.com/angelmondragon/crm-backend/pkg/instance"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the structured logger. Format falls back to
// CRM_LOG_FORMAT and then to json.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger writes zerolog entries enriched with the fields carried on the
// request context. A nil *Logger discards everything.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = env.Get("CRM_LOG_FORMAT", FormatJSON)
	}
	if format == FormatConsole {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Str("instance", instance.GetID()).
		Logger().
		Level(opts.Level)

	return &Logger{base: &base, warnStack: opts.WarnStack}
}

func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) entry(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return e
		}
	}
	return l.base
}

// WithFields returns a context whose log entries carry fields.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if l == nil || len(fields) == 0 {
		return ctx
	}
	builder := l.entry(ctx).With()
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}
	next := builder.Logger()
	return context.WithValue(ctx, ctxKey{}, &next)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

func (l *Logger) WithTeamID(ctx context.Context, teamID string) context.Context {
	return l.WithField(ctx, "team_id", teamID)
}

// WithStripeEvent tags entries with the provider event being processed.
func (l *Logger) WithStripeEvent(ctx context.Context, eventID, eventType string) context.Context {
	return l.WithFields(ctx, map[string]any{"stripe_event_id": eventID, "stripe_event_type": eventType})
}

func (l *Logger) Info(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	l.entry(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	event := l.entry(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	if l == nil {
		return
	}
	event := l.entry(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
