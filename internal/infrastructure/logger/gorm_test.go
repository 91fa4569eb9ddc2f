package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(cfg GormLoggerConfig) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), recorded
}

func TestGormLoggerConfigFor(t *testing.T) {
	cfg := GormLoggerConfigFor("debug", time.Second)
	assert.Equal(t, GormLoggerConfig{Level: gormlogger.Info, SlowQuery: time.Second}, cfg)

	var _ gormlogger.Interface = NewGormLogger(nil, cfg)
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog, _ := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Info, SlowQuery: time.Second})
	changed, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gormLog.cfg.Level)
	assert.Equal(t, gormlogger.Warn, changed.cfg.Level)
	assert.Equal(t, time.Second, changed.cfg.SlowQuery)
}

func TestGormLogger_Messages(t *testing.T) {
	gormLog, recorded := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Warn})
	ctx := WithTenant(context.Background(), "Cafe|RESTAURACAO")

	gormLog.Info(ctx, "suppressed %d", 1)
	gormLog.Warn(ctx, "warn %s", "x")
	gormLog.Error(ctx, "error %s", "y")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "warn x", logs[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "error y", logs[1].Message)
	assert.Equal(t, "Cafe|RESTAURACAO", logs[1].ContextMap()["tenant"])
	assert.Equal(t, "store", logs[1].LoggerName)
}

func TestGormLogger_Trace(t *testing.T) {
	fc := func() (string, int64) { return "SELECT * FROM products", 3 }
	debug := GormLoggerConfig{Level: gormlogger.Info}

	tests := []struct {
		name    string
		cfg     GormLoggerConfig
		begin   time.Duration
		err     error
		message string
		level   zapcore.Level
	}{
		{name: "failure", cfg: debug, err: errors.New("boom"), message: "Statement failed", level: zapcore.ErrorLevel},
		{name: "failure at default level", cfg: GormLoggerConfig{Level: gormlogger.Warn}, err: errors.New("boom"),
			message: "Statement failed", level: zapcore.ErrorLevel},
		{name: "sqlite busy", cfg: debug, err: fmt.Errorf("exec: %w", errors.New("database is locked")),
			message: "Store busy", level: zapcore.WarnLevel},
		{name: "record not found", cfg: debug, err: gorm.ErrRecordNotFound, message: "Statement rejected", level: zapcore.DebugLevel},
		{name: "duplicate key", cfg: debug, err: gorm.ErrDuplicatedKey, message: "Statement rejected", level: zapcore.DebugLevel},
		{name: "slow", cfg: GormLoggerConfig{Level: gormlogger.Warn, SlowQuery: time.Millisecond}, begin: time.Second,
			message: "Slow statement", level: zapcore.WarnLevel},
		{name: "traced at debug", cfg: debug, message: "Statement", level: zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormLog, recorded := newObservedGormLogger(tt.cfg)
			gormLog.Trace(context.Background(), time.Now().Add(-tt.begin), fc, tt.err)

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.message, logs[0].Message)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, "SELECT * FROM products", logs[0].ContextMap()["sql"])
		})
	}

	t.Run("expected errors are quiet by default", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Warn})
		gormLog.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
		gormLog.Trace(context.Background(), time.Now(), fc, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Silent})
		gormLog.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
		assert.Empty(t, recorded.All())
	})

	t.Run("carries context tags", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(debug)
		ctx := WithUsername(WithTenant(WithOperation(context.Background(), "invoice create"), "Cafe|RESTAURACAO"), "rui")
		gormLog.Trace(ctx, time.Now(), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "invoice create", fields["operation"])
		assert.Equal(t, "Cafe|RESTAURACAO", fields["tenant"])
		assert.Equal(t, "rui", fields["username"])
		assert.Equal(t, int64(3), fields["rows"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Warn},
		{"DEBUG", gormlogger.Info},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
