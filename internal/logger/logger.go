// Package logger configures zerolog for the API and bridges GORM's logger
// into it.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// Setup returns the process logger. Development mode logs at debug level
// through the console writer; otherwise JSON at info level.
func Setup(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).With().Caller().Logger()
	}

	return logger
}

type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debug().Msgf(format, args...)
}

// Gorm adapts log for gorm.Config.Logger. Slow queries and errors are
// logged at debug level with the SQL; dev mode also logs every statement.
func Gorm(log zerolog.Logger, dev bool) gormlogger.Interface {
	level := gormlogger.Warn
	if dev {
		level = gormlogger.Info
	}
	return gormlogger.New(gormWriter{log: log.With().Str("component", "gorm").Logger()}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// FromContext returns the request-scoped logger, falling back to fallback
// when none was attached.
func FromContext(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
