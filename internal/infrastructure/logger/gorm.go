package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig controls what the store reports through zap
type GormLoggerConfig struct {
	// Level is the gorm verbosity; see MapGormLogLevel
	Level gormlogger.LogLevel
	// SlowQuery marks statements at warn once they take this long. Zero
	// disables the check.
	SlowQuery time.Duration
}

// GormLoggerConfigFor derives the store logging from the application log
// level and the configured slow query threshold
func GormLoggerConfigFor(logLevel string, slowQuery time.Duration) GormLoggerConfig {
	return GormLoggerConfig{Level: MapGormLogLevel(logLevel), SlowQuery: slowQuery}
}

// GormLogger routes gorm's statements and messages into zap. Every entry
// carries the operation, tenant and username of the calling context.
type GormLogger struct {
	base *zap.Logger
	cfg  GormLoggerConfig
}

// NewGormLogger creates the adapter under the "store" logger name
func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{base: base.Named("store"), cfg: cfg}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *GormLogger) message(ctx context.Context, level gormlogger.LogLevel, zl zapcore.Level, msg string, data []any) {
	if l.cfg.Level < level {
		return
	}
	if ce := WithLogger(ctx, l.base).Zap().Check(zl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

// statementOutcome classifies a traced statement
type statementOutcome int

const (
	outcomeOK statementOutcome = iota
	outcomeSlow
	outcomeExpected // not-found and unique violations become domain errors upstream
	outcomeBusy     // sqlite lock contention past the busy timeout
	outcomeFailed
)

func (l *GormLogger) classify(elapsed time.Duration, err error) statementOutcome {
	switch {
	case err == nil:
		if l.cfg.SlowQuery > 0 && elapsed >= l.cfg.SlowQuery {
			return outcomeSlow
		}
		return outcomeOK
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrDuplicatedKey):
		return outcomeExpected
	case strings.Contains(err.Error(), "database is locked"):
		return outcomeBusy
	default:
		return outcomeFailed
	}
}

// Trace implements gormlogger.Interface. Failures are reported from the
// Error level up, slow statements from Warn and every statement at Info,
// which MapGormLogLevel only selects for debug logging.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	outcome := l.classify(elapsed, err)

	statement := func() []zap.Field {
		sql, rows := fc()
		return []zap.Field{zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed)}
	}
	log := WithLogger(ctx, l.base)

	switch {
	case outcome == outcomeFailed && l.cfg.Level >= gormlogger.Error:
		log.Error("Statement failed", append(statement(), zap.Error(err))...)
	case outcome == outcomeBusy && l.cfg.Level >= gormlogger.Error:
		log.Warn("Store busy", append(statement(), zap.Error(err))...)
	case outcome == outcomeSlow && l.cfg.Level >= gormlogger.Warn:
		log.Warn("Slow statement", append(statement(), zap.Duration("threshold", l.cfg.SlowQuery))...)
	case outcome == outcomeExpected && l.cfg.Level >= gormlogger.Info:
		log.Debug("Statement rejected", append(statement(), zap.Error(err))...)
	case l.cfg.Level >= gormlogger.Info:
		log.Debug("Statement", statement()...)
	}
}

// MapGormLogLevel maps the application log level to the gorm one. SQL is
// only traced at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
