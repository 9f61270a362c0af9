// logger.go adapts the store's structured logger to GORM's logger.Interface
// so database activity flows through the same slog pipeline as everything
// else instead of GORM's own stdlib-log default.
package datastore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jrnl/voicejournal/internal/logging"
	gormlogger "gorm.io/gorm/logger"
)

// slogGormLogger implements gorm/logger.Interface on top of a *slog.Logger.
type slogGormLogger struct {
	log           *slog.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

// NewGormLogger returns a GORM logger that writes through the datastore's
// named slog logger, warning on queries slower than slowThreshold.
func NewGormLogger(slowThreshold time.Duration, level gormlogger.LogLevel) gormlogger.Interface {
	return &slogGormLogger{
		log:           logging.ForService("datastore"),
		slowThreshold: slowThreshold,
		level:         level,
	}
}

func (l *slogGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.InfoContext(ctx, msg, "args", args)
	}
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.WarnContext(ctx, msg, "args", args)
	}
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.ErrorContext(ctx, msg, "args", args)
	}
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		l.log.ErrorContext(ctx, "gorm query failed", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.WarnContext(ctx, "slow gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= gormlogger.Info:
		l.log.DebugContext(ctx, "gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
