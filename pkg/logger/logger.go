// Package logger exposes a package level logging.Logger.
package logger

import (
	"context"

	"go.llib.dev/aggregate/pkg/logging"
)

var Default logging.Logger

func Debug(ctx context.Context, msg string, ds ...logging.Detail) {
	Default.Debug(ctx, msg, ds...)
}

func Info(ctx context.Context, msg string, ds ...logging.Detail) {
	Default.Info(ctx, msg, ds...)
}

func Warn(ctx context.Context, msg string, ds ...logging.Detail) {
	Default.Warn(ctx, msg, ds...)
}

func Error(ctx context.Context, msg string, ds ...logging.Detail) {
	Default.Error(ctx, msg, ds...)
}
