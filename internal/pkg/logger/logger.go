// Package logger is the standardized, package-global logger of the inventory service.
// It wraps zap, and lets the application decide which context values end up in every log line.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type ContextFields func(ctx context.Context) []zap.Field

var (
	logHandler          *zap.Logger
	contextFieldsSetter ContextFields
)

// initializes zap logger
func init() { //nolint:gochecknoinits // it is essential for this package
	logHandler, _ = zap.NewProduction(zap.AddCallerSkip(1))
	zap.ReplaceGlobals(logHandler)
}

func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if contextFieldsSetter == nil || ctx == nil {
		return fields
	}
	return append(fields, contextFieldsSetter(ctx)...)
}

// ErrWithStacktrace logs an error with its stacktrace if available
func ErrWithStacktrace(err error) {
	logHandler.Error(fmt.Sprintf("%+v", err))
}

// ErrWithStacktraceCtx is ErrWithStacktrace including the context fields
func ErrWithStacktraceCtx(ctx context.Context, err error) {
	logHandler.Error(fmt.Sprintf("%+v", err), withContext(ctx, nil)...)
}

// Info logs a message with severity "info". This can be used for startup messages, exit messages etc. (on clean exit)
func Info(msg string, fields ...zap.Field) {
	logHandler.Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	logHandler.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logHandler.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logHandler.Error(msg, fields...)
}

// Fatal logs a message with severity "fatal". This forces the app to exit with os.Exit(1)
func Fatal(msg string, fields ...zap.Field) {
	logHandler.Fatal(msg, fields...)
}

// SetGlobal overwrites the Global logHandler used in this package
func SetGlobal(zl *zap.Logger) {
	logHandler = zl
	zap.ReplaceGlobals(zl)
}

// Global returns the current log handler, e.g. for libraries accepting a *zap.Logger
func Global() *zap.Logger {
	return logHandler
}

func SetContextFieldsSetter(fn ContextFields) {
	contextFieldsSetter = fn
}

func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Info(msg, withContext(ctx, fields)...)
}

func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Debug(msg, withContext(ctx, fields)...)
}

func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Warn(msg, withContext(ctx, fields)...)
}

func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Error(msg, withContext(ctx, fields)...)
}

func FatalCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logHandler.Fatal(msg, withContext(ctx, fields)...)
}
