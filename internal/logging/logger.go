// Package logging provides the structured logger used across the storage
// engine, modeled on the teacher's utils.Logger.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logging interface the docstore package depends on
// instead of *slog.Logger directly, so tests can swap in a recording logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	DebugCtx(ctx context.Context, msg string, args ...any)
	InfoCtx(ctx context.Context, msg string, args ...any)
	WarnCtx(ctx context.Context, msg string, args ...any)
	ErrorCtx(ctx context.Context, msg string, args ...any)
}

type defaultLogger struct {
	logger *slog.Logger
}

// New returns a slog-backed Logger writing text-formatted records to stderr.
func New(level slog.Level) Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	return &defaultLogger{logger: logger}
}

// Nop returns a Logger that discards everything, for tests that don't care.
func Nop() Logger {
	return &defaultLogger{logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))}
}

const prefix = "[docstore] "

func (d *defaultLogger) Debug(msg string, args ...any) { d.logger.Debug(prefix+msg, args...) }
func (d *defaultLogger) Info(msg string, args ...any)  { d.logger.Info(prefix+msg, args...) }
func (d *defaultLogger) Warn(msg string, args ...any)  { d.logger.Warn(prefix+msg, args...) }
func (d *defaultLogger) Error(msg string, args ...any) { d.logger.Error(prefix+msg, args...) }

type ctxArgsKey struct{}

func ctxArgs(ctx context.Context) []any {
	v := ctx.Value(ctxArgsKey{})
	if v == nil {
		return nil
	}
	return v.([]any)
}

// WithArgs attaches default log fields to a context, mirroring the teacher's
// utils.WithDefaultArgs.
func WithArgs(ctx context.Context, args ...any) context.Context {
	return context.WithValue(ctx, ctxArgsKey{}, append(ctxArgs(ctx), args...))
}

func (d *defaultLogger) DebugCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Debug(prefix+msg, append(args, ctxArgs(ctx)...)...)
}

func (d *defaultLogger) InfoCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Info(prefix+msg, append(args, ctxArgs(ctx)...)...)
}

func (d *defaultLogger) WarnCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Warn(prefix+msg, append(args, ctxArgs(ctx)...)...)
}

func (d *defaultLogger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Error(prefix+msg, append(args, ctxArgs(ctx)...)...)
}
