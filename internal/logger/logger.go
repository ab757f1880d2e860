// Package logger builds the process-wide zap logger and provides helpers for
// logging errors that carry oops context.
package logger

import (
	"os"
	"strings"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init returns a development logger when dev is set and a JSON production
// logger otherwise.  An empty level means debug in dev and info in prod.
func Init(level string, dev bool) (*zap.Logger, error) {
	if level == "" && dev {
		level = "debug"
	}
	lvl := levelFromString(level)
	if dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// LogError logs err at error level.  For oops errors the attached context
// is logged as a separate field.
func LogError(l *zap.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		fields := []zap.Field{zap.String("error", oopsErr.Error())}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields = append(fields, zap.Any("context", ctx))
		}
		l.Error(msg, fields...)
		return
	}
	l.Error(msg, zap.Error(err))
}
