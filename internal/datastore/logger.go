package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/redharvest/redharvest-go/internal/logging"
)

var (
	datastoreLogger *slog.Logger
	loggerOnce      sync.Once
)

// getLogger returns the shared datastore logger, lazily initialized.
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		datastoreLogger = logging.ForService("datastore")
		if datastoreLogger == nil {
			datastoreLogger = slog.Default().With("service", "datastore")
		}
	})
	return datastoreLogger
}

// gormLogger adapts GORM's logger interface onto slog.
type gormLogger struct {
	slowThreshold time.Duration
	logLevel      logger.LogLevel
}

// createGormLogger builds the logger GORM uses for query tracing.
func createGormLogger() logger.Interface {
	return &gormLogger{
		slowThreshold: 200 * time.Millisecond,
		logLevel:      logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= logger.Info {
		getLogger().InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= logger.Warn {
		getLogger().WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= logger.Error {
		getLogger().ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && err != gorm.ErrRecordNotFound:
		getLogger().ErrorContext(ctx, "database query failed",
			"error", err,
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		getLogger().WarnContext(ctx, "slow query detected",
			"sql", sql,
			"duration", elapsed,
			"threshold", l.slowThreshold)
	case l.logLevel >= logger.Info:
		getLogger().DebugContext(ctx, "query executed",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)
	}
}
