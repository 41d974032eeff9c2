package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"
)

// slogWriter routes gorm's SQL trace output to a slog.Logger at debug level.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.logger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...), "component", "gorm")
}

func newGormLogger(l *slog.Logger) logger.Interface {
	level := logger.Warn
	if l.Enabled(context.Background(), slog.LevelDebug) {
		level = logger.Info
	}
	return logger.New(slogWriter{logger: l}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
